package extraction

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annualguard/annualguard/internal/application"
	domai "github.com/annualguard/annualguard/internal/domain/ai"
	"github.com/annualguard/annualguard/internal/domain/document"
)

type fakeNative struct {
	pages []string // "" berarti text layer kosong
	errAt map[int]error
}

func (f *fakeNative) PageCount() int { return len(f.pages) }

func (f *fakeNative) PageText(num int) (string, error) {
	if err := f.errAt[num]; err != nil {
		return "", err
	}
	return f.pages[num-1], nil
}

type fakeOCR struct {
	text  map[int]string
	conf  map[int]float64
	errAt map[int]error
}

func (f *fakeOCR) RecognizePage(_ context.Context, _ string, page int) (string, float64, error) {
	if err := f.errAt[page]; err != nil {
		return "", 0, err
	}
	return f.text[page], f.conf[page], nil
}

func (f *fakeOCR) RenderPage(_ context.Context, _ string, page int) ([]byte, error) {
	return []byte("png"), nil
}

type fakeVendor struct {
	text  string
	conf  float64
	calls int
}

func (f *fakeVendor) Complete(context.Context, string, string) (string, domai.Usage, error) {
	return "", domai.Usage{}, errors.New("not used")
}

func (f *fakeVendor) OCRImage(context.Context, []byte) (string, float64, domai.Usage, error) {
	f.calls++
	return f.text, f.conf, domai.Usage{PromptTokens: 100}, nil
}

func newService(native *fakeNative, ocr *fakeOCR, vendor *fakeVendor, dir string) *Service {
	s := &Service{
		OpenNative: func([]byte) (NativeReader, error) { return native, nil },
		OCR:        ocr,
		WorkDir:    dir,
	}
	if vendor != nil {
		s.AI = vendor
	}
	return s
}

func testDoc() *document.SourceDocument {
	content := []byte("%PDF-1.7 test")
	return &document.SourceDocument{Hash: document.HashContent(content), Content: content}
}

func TestExtractNativeTier(t *testing.T) {
	long := strings.Repeat("text layer content ", 20) // > 200 chars
	native := &fakeNative{pages: []string{long, long}}
	svc := newService(native, &fakeOCR{}, nil, t.TempDir())

	pages, err := svc.Extract(context.Background(), application.NewMeter(0), testDoc())
	require.NoError(t, err)
	require.Len(t, pages, 2)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Number)
		assert.Equal(t, document.MethodNative, p.Method)
		assert.Equal(t, 1.0, p.Confidence)
	}
}

func TestExtractOCRFallback(t *testing.T) {
	long := strings.Repeat("x", 300)
	native := &fakeNative{pages: []string{long, ""}} // halaman 2 scanned
	ocr := &fakeOCR{
		text: map[int]string{2: "recognized text"},
		conf: map[int]float64{2: 0.8},
	}
	svc := newService(native, ocr, nil, t.TempDir())

	pages, err := svc.Extract(context.Background(), application.NewMeter(0), testDoc())
	require.NoError(t, err)
	assert.Equal(t, document.MethodNative, pages[0].Method)
	assert.Equal(t, document.MethodOCR, pages[1].Method)
	assert.Equal(t, "recognized text", pages[1].Text)
	assert.InDelta(t, 0.8, pages[1].Confidence, 1e-9)
}

func TestExtractPageFailureNotFatal(t *testing.T) {
	long := strings.Repeat("x", 300)
	native := &fakeNative{pages: []string{long, ""}}
	ocr := &fakeOCR{errAt: map[int]error{2: errors.New("tesseract crashed")}}
	svc := newService(native, ocr, nil, t.TempDir())

	pages, err := svc.Extract(context.Background(), application.NewMeter(0), testDoc())
	require.NoError(t, err, "single page failure must not fail the document")
	assert.Equal(t, document.MethodFailed, pages[1].Method)
	assert.Zero(t, pages[1].Confidence)
	assert.Empty(t, pages[1].Text)
}

func TestExtractVendorPassCapped(t *testing.T) {
	// 10 halaman, semua OCR low-confidence → kandidat vendor semua,
	// tapi cap = ceil(0.1*10) = 1 call
	pages := make([]string, 10)
	ocrText := map[int]string{}
	ocrConf := map[int]float64{}
	for i := 1; i <= 10; i++ {
		ocrText[i] = "blurry"
		ocrConf[i] = 0.3
	}
	ocrConf[7] = 0.1 // terburuk, harus dipilih duluan
	native := &fakeNative{pages: pages}
	ocr := &fakeOCR{text: ocrText, conf: ocrConf}
	vendor := &fakeVendor{text: "vendor transcription", conf: 0.9}
	svc := newService(native, ocr, vendor, t.TempDir())
	svc.VendorPageFraction = 0.1

	out, err := svc.Extract(context.Background(), application.NewMeter(0), testDoc())
	require.NoError(t, err)
	assert.Equal(t, 1, vendor.calls)
	assert.Equal(t, document.MethodVendor, out[6].Method)
	assert.Equal(t, "vendor transcription", out[6].Text)
	// sisanya tetap hasil tier 2
	assert.Equal(t, document.MethodOCR, out[0].Method)
}

func TestExtractVendorBudgetExceeded(t *testing.T) {
	native := &fakeNative{pages: make([]string, 3)}
	ocr := &fakeOCR{text: map[int]string{1: "a", 2: "b", 3: "c"}, conf: map[int]float64{1: 0.1, 2: 0.1, 3: 0.1}}
	vendor := &fakeVendor{text: "t", conf: 0.9}
	svc := newService(native, ocr, vendor, t.TempDir())

	// budget 50 < 100 tokens per call → budget exceeded fatal
	_, err := svc.Extract(context.Background(), application.NewMeter(50), testDoc())
	require.Error(t, err)
	assert.ErrorIs(t, err, domai.ErrBudgetExceeded)
}

// statOCR gagal kalau scratch file-nya sudah hilang, sebagaimana tesseract
// beneran; sleep kecil supaya dua run pasti overlap.
type statOCR struct{}

func (statOCR) RecognizePage(_ context.Context, pdfPath string, page int) (string, float64, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return "", 0, err
	}
	time.Sleep(5 * time.Millisecond)
	return "recognized", 0.8, nil
}

func (statOCR) RenderPage(_ context.Context, pdfPath string, _ int) ([]byte, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, err
	}
	return []byte("png"), nil
}

func TestExtractScratchFileUniquePerRun(t *testing.T) {
	dir := t.TempDir()
	svc := newService(&fakeNative{pages: []string{""}}, &fakeOCR{}, nil, dir)

	doc := testDoc()
	p1, err := svc.writeTemp(doc)
	require.NoError(t, err)
	p2, err := svc.writeTemp(doc)
	require.NoError(t, err)
	defer os.Remove(p1)
	defer os.Remove(p2)

	assert.NotEqual(t, p1, p2, "same content must not share scratch files")
	for _, p := range []string{p1, p2} {
		got, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, doc.Content, got)
	}
}

func TestExtractConcurrentSameDocumentIsolated(t *testing.T) {
	// dua run atas dokumen identik (tenant beda) jalan bersamaan; cleanup
	// run pertama tidak boleh menjatuhkan OCR run kedua ke confidence 0
	dir := t.TempDir()
	native := func() *fakeNative { return &fakeNative{pages: make([]string, 4)} }

	run := func() ([]document.Page, error) {
		svc := newService(native(), nil, nil, dir)
		svc.OCR = statOCR{}
		svc.Workers = 2
		return svc.Extract(context.Background(), application.NewMeter(0), testDoc())
	}

	var wg sync.WaitGroup
	outs := make([][]document.Page, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i], errs[i] = run()
		}()
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		for _, p := range outs[i] {
			assert.Equal(t, document.MethodOCR, p.Method)
			assert.InDelta(t, 0.8, p.Confidence, 1e-9)
		}
	}
}

func TestExtractUnreadableDocument(t *testing.T) {
	svc := &Service{
		OpenNative: func([]byte) (NativeReader, error) { return nil, errors.New("bad xref") },
		OCR:        &fakeOCR{},
	}
	_, err := svc.Extract(context.Background(), application.NewMeter(0), testDoc())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable")
}
