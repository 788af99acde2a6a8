package extraction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/annualguard/annualguard/internal/application"
	domai "github.com/annualguard/annualguard/internal/domain/ai"
	"github.com/annualguard/annualguard/internal/domain/document"
)

// NativeReader port untuk text-layer extraction
type NativeReader interface {
	PageCount() int
	PageText(num int) (string, error)
}

// OCREngine port untuk on-device OCR tier
type OCREngine interface {
	RecognizePage(ctx context.Context, pdfPath string, page int) (string, float64, error)
	RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// Service implements the three-tier extraction layer: text layer → on-device
// OCR → vendor OCR, dengan cap biaya di tier terakhir.
type Service struct {
	OpenNative func(content []byte) (NativeReader, error)
	OCR        OCREngine
	AI         domai.Client

	Workers            int     // parallel page extraction
	MinCharsPerPage    int     // below this the text layer is considered empty
	MinOCRConfidence   float64 // below this a page becomes a vendor candidate
	VendorPageFraction float64 // vendor cap = ceil(fraction * page count)
	Retry              application.RetryPolicy
	WorkDir            string
}

// Extract produces one Page per physical page. Per-page failures record an
// empty zero-confidence page; only a document that cannot be opened at all
// is a hard error.
func (s *Service) Extract(ctx context.Context, meter *application.Meter, doc *document.SourceDocument) ([]document.Page, error) {
	native, err := s.OpenNative(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("document unreadable: %w", err)
	}
	count := native.PageCount()
	if count == 0 {
		return nil, fmt.Errorf("document unreadable: zero pages")
	}

	// OCR tiers butuh file di disk
	pdfPath, err := s.writeTemp(doc)
	if err != nil {
		return nil, err
	}
	defer os.Remove(pdfPath)

	pages := make([]document.Page, count)

	workers := s.Workers
	if workers <= 0 {
		workers = 4
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 1; i <= count; i++ {
		num := i
		eg.Go(func() error {
			pages[num-1] = s.extractPage(egCtx, native, pdfPath, num)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.vendorPass(ctx, meter, pdfPath, pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// extractPage tiers 1-2 untuk satu halaman
func (s *Service) extractPage(ctx context.Context, native NativeReader, pdfPath string, num int) document.Page {
	minChars := s.MinCharsPerPage
	if minChars <= 0 {
		minChars = 200
	}

	text, err := native.PageText(num)
	if err == nil && len(strings.TrimSpace(text)) >= minChars {
		return document.Page{Number: num, Text: text, Method: document.MethodNative, Confidence: 1.0}
	}

	ocrText, conf, ocrErr := s.OCR.RecognizePage(ctx, pdfPath, num)
	if ocrErr != nil {
		log.Printf("page %d: ocr failed: %v", num, ocrErr)
		// keep whatever the text layer gave us, else record the failure
		if err == nil && strings.TrimSpace(text) != "" {
			return document.Page{Number: num, Text: text, Method: document.MethodNative, Confidence: 0.5}
		}
		return document.Page{Number: num, Text: "", Method: document.MethodFailed, Confidence: 0}
	}
	return document.Page{Number: num, Text: ocrText, Method: document.MethodOCR, Confidence: conf}
}

// vendorPass tier 3: halaman dengan confidence terendah dulu, dibatasi
// fraction dari total halaman supaya biaya bounded.
func (s *Service) vendorPass(ctx context.Context, meter *application.Meter, pdfPath string, pages []document.Page) error {
	if s.AI == nil {
		return nil
	}
	minConf := s.MinOCRConfidence
	if minConf <= 0 {
		minConf = 0.5
	}

	var candidates []int
	for i, p := range pages {
		if p.Method != document.MethodNative && p.Confidence < minConf {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(a, b int) bool {
		return pages[candidates[a]].Confidence < pages[candidates[b]].Confidence
	})

	frac := s.VendorPageFraction
	if frac <= 0 {
		frac = 0.1
	}
	limit := int(math.Ceil(frac * float64(len(pages))))
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	for _, idx := range candidates {
		num := pages[idx].Number
		png, err := s.OCR.RenderPage(ctx, pdfPath, num)
		if err != nil {
			log.Printf("page %d: render for vendor ocr failed: %v", num, err)
			continue
		}

		var text string
		var conf float64
		err = application.Retry(ctx, s.Retry, func(ctx context.Context) error {
			t, c, usage, err := s.AI.OCRImage(ctx, png)
			if err != nil {
				return err
			}
			if err := meter.AddTokens(usage); err != nil {
				return err
			}
			text, conf = t, c
			return nil
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, domai.ErrBudgetExceeded) {
				return err
			}
			log.Printf("page %d: vendor ocr failed: %v", num, err)
			continue
		}
		meter.AddOCRCall()
		if conf > pages[idx].Confidence {
			pages[idx] = document.Page{Number: num, Text: text, Method: document.MethodVendor, Confidence: conf}
		}
	}
	return nil
}

// writeTemp drops the PDF into scratch space for the OCR tools. Path harus
// unik per run: dua job dengan konten sama boleh jalan bersamaan (beda
// tenant), dan cleanup job satu tidak boleh nyabut file job lain.
func (s *Service) writeTemp(doc *document.SourceDocument) (string, error) {
	dir := s.WorkDir
	if dir == "" {
		dir = filepath.Join(".", "temp")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, doc.Hash[:16]+"-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(doc.Content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
