package sections

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annualguard/annualguard/internal/application"
	domai "github.com/annualguard/annualguard/internal/domain/ai"
	"github.com/annualguard/annualguard/internal/domain/document"
	domsec "github.com/annualguard/annualguard/internal/domain/sections"
)

// fakeAI scripted client: jawaban pertama untuk locate pass, sisanya untuk
// refine calls per section.
type fakeAI struct {
	locate  string
	refine  map[domsec.Name]string
	fail    bool
	calls   int
	usageIn domai.Usage
}

func (f *fakeAI) Complete(_ context.Context, system, user string) (string, domai.Usage, error) {
	f.calls++
	if f.fail {
		return "", domai.Usage{}, errors.New("model unavailable")
	}
	u := f.usageIn
	if strings.Contains(user, "Section to pin down:") {
		// refine pass: cari section name di user prompt
		for name, resp := range f.refine {
			if strings.Contains(user, string(name)) {
				return resp, u, nil
			}
		}
		return `{"page":0,"confidence":0}`, u, nil
	}
	_ = system
	return f.locate, u, nil
}

func (f *fakeAI) OCRImage(context.Context, []byte) (string, float64, domai.Usage, error) {
	return "", 0, domai.Usage{}, errors.New("not used")
}

func makePages(n int) []document.Page {
	pages := make([]document.Page, n)
	for i := range pages {
		pages[i] = document.Page{Number: i + 1, Text: "page text", Method: document.MethodNative, Confidence: 1}
	}
	return pages
}

func TestLocateBuildsOrderedRanges(t *testing.T) {
	ai := &fakeAI{
		locate: `{"sections":[
			{"name":"auditors_report","variant":"standalone","page":80,"confidence":0.9},
			{"name":"balance_sheet","variant":"standalone","page":95,"confidence":0.85},
			{"name":"mdna","page":30,"confidence":0.7}
		]}`,
		refine: map[domsec.Name]string{
			domsec.AuditorsReport: `{"page":82,"confidence":0.95}`,
			domsec.BalanceSheet:   `{"page":95,"confidence":0.9}`,
			domsec.MDNA:           `{"page":28,"confidence":0.8}`,
		},
	}
	l := &Locator{AI: ai, Stride: 6, MinConfidence: 0.4}

	set, err := l.Locate(context.Background(), application.NewMeter(0), makePages(120))
	require.NoError(t, err)
	require.Len(t, set, 3)

	// ordered by start; end = start berikutnya - 1, section terakhir sampai EOF
	assert.Equal(t, domsec.MDNA, set[0].Section)
	assert.Equal(t, 28, set[0].Start)
	assert.Equal(t, 81, set[0].End)
	assert.Equal(t, domsec.AuditorsReport, set[1].Section)
	assert.Equal(t, 82, set[1].Start)
	assert.Equal(t, 94, set[1].End)
	assert.Equal(t, domsec.BalanceSheet, set[2].Section)
	assert.Equal(t, 95, set[2].Start)
	assert.Equal(t, 120, set[2].End)
	assert.Equal(t, "standalone", set[2].Variant)
}

func TestLocateDropsLowConfidenceAndUnknownNames(t *testing.T) {
	ai := &fakeAI{
		locate: `{"sections":[
			{"name":"auditors_report","page":10,"confidence":0.9},
			{"name":"chairmans_selfie","page":3,"confidence":0.99},
			{"name":"mdna","page":50,"confidence":0.2}
		]}`,
		refine: map[domsec.Name]string{
			domsec.AuditorsReport: `{"page":10,"confidence":0.9}`,
			domsec.MDNA:           `{"page":50,"confidence":0.2}`,
		},
	}
	l := &Locator{AI: ai, MinConfidence: 0.4}

	set, err := l.Locate(context.Background(), application.NewMeter(0), makePages(60))
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, domsec.AuditorsReport, set[0].Section)
}

func TestLocateModelFailureIsNotFatal(t *testing.T) {
	ai := &fakeAI{fail: true}
	l := &Locator{AI: ai, Retry: application.RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond}}

	set, err := l.Locate(context.Background(), application.NewMeter(0), makePages(30))
	// locator gagal → sections absent, job tetap jalan
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestLocateBudgetExceededPropagates(t *testing.T) {
	ai := &fakeAI{
		locate:  `{"sections":[]}`,
		usageIn: domai.Usage{PromptTokens: 5000, CompletionTokens: 5000},
	}
	l := &Locator{AI: ai}

	// budget 100 tokens, call pertama langsung lewat
	_, err := l.Locate(context.Background(), application.NewMeter(100), makePages(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, domai.ErrBudgetExceeded)
}

func TestLocateSkipsUnreliablePages(t *testing.T) {
	pages := makePages(12)
	for i := range pages {
		pages[i].Confidence = 0 // semua halaman failed
		pages[i].Method = document.MethodFailed
	}
	ai := &fakeAI{locate: `{"sections":[]}`}
	l := &Locator{AI: ai}

	set, err := l.Locate(context.Background(), application.NewMeter(0), pages)
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.Zero(t, ai.calls, "no samples, no model call")
}

func TestHeadCutsOnRuneBoundary(t *testing.T) {
	// sampel OCR bisa berisi multi-byte rune (₹ = 3 byte); potongan tidak
	// boleh menghasilkan UTF-8 invalid
	s := strings.Repeat("₹", 10)
	out := head(s, 4)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "₹", out)
	assert.True(t, strings.HasPrefix(s, out))

	assert.Equal(t, "abcd", head("abcdef", 4))
	assert.Equal(t, "short", head("  short  ", 100))
}
