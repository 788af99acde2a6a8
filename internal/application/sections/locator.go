package sections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/annualguard/annualguard/internal/application"
	domai "github.com/annualguard/annualguard/internal/domain/ai"
	"github.com/annualguard/annualguard/internal/domain/document"
	domsec "github.com/annualguard/annualguard/internal/domain/sections"
	"github.com/annualguard/annualguard/internal/infra/ai/prompt"
)

// Locator maps logical report sections to page ranges: sparse sampling plus
// satu language-model pass, lalu refinement pass untuk boundary.
type Locator struct {
	AI domai.Client

	Stride        int     // sample every Nth page
	SampleChars   int     // chars per sampled page sent to the model
	MinConfidence float64 // below this a section is absent, not guessed
	Retry         application.RetryPolicy
}

type candidate struct {
	section    domsec.Name
	variant    string
	start      int
	confidence float64
}

// Locate returns zero or more ranges per recognized section. Model failure
// after retries leaves sections absent — detectors treat that as
// insufficient data, so the locator itself never fails the job.
func (l *Locator) Locate(ctx context.Context, meter *application.Meter, pages []document.Page) (domsec.Set, error) {
	stride := l.Stride
	if stride <= 0 {
		stride = 6
	}
	sampleChars := l.SampleChars
	if sampleChars <= 0 {
		sampleChars = 400
	}

	samples := make(map[int]string)
	for i := 0; i < len(pages); i += stride {
		p := pages[i]
		if p.Confidence == 0 {
			continue // unreliable page, skip sampling
		}
		samples[p.Number] = head(p.Text, sampleChars)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	cands, err := l.firstPass(ctx, meter, samples)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, domai.ErrBudgetExceeded) {
			return nil, err
		}
		log.Printf("section locate pass failed: %v", err)
		return nil, nil
	}

	cands = l.refine(ctx, meter, pages, cands, stride, sampleChars)
	return buildRanges(cands, len(pages), l.minConfidence()), nil
}

func (l *Locator) minConfidence() float64 {
	if l.MinConfidence > 0 {
		return l.MinConfidence
	}
	return 0.4
}

func (l *Locator) firstPass(ctx context.Context, meter *application.Meter, samples map[int]string) ([]candidate, error) {
	var raw string
	err := application.Retry(ctx, l.Retry, func(ctx context.Context) error {
		out, usage, err := l.AI.Complete(ctx, prompt.LocateSystem(), prompt.LocateUser(samples))
		if err != nil {
			return err
		}
		if err := meter.AddTokens(usage); err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Sections []struct {
			Name       string  `json:"name"`
			Variant    string  `json:"variant"`
			Page       int     `json:"page"`
			Confidence float64 `json:"confidence"`
		} `json:"sections"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parse locate response: %w", err)
	}

	var cands []candidate
	for _, s := range resp.Sections {
		name := domsec.Name(strings.ToLower(strings.TrimSpace(s.Name)))
		if domsec.Describe(name) == nil || s.Page < 1 {
			continue // nama di luar catalog dibuang
		}
		cands = append(cands, candidate{
			section:    name,
			variant:    normalizeVariant(s.Variant),
			start:      s.Page,
			confidence: clamp01(s.Confidence),
		})
	}
	return cands, nil
}

// refine narrows each candidate boundary dalam window sekitar start.
// Kegagalan refinement mempertahankan kandidat pass pertama.
func (l *Locator) refine(ctx context.Context, meter *application.Meter, pages []document.Page, cands []candidate, stride, sampleChars int) []candidate {
	for i, c := range cands {
		window := make(map[int]string)
		for n := c.start - stride; n <= c.start+stride; n++ {
			if n >= 1 && n <= len(pages) {
				window[n] = head(pages[n-1].Text, sampleChars)
			}
		}
		if len(window) == 0 {
			continue
		}

		var raw string
		err := application.Retry(ctx, l.Retry, func(ctx context.Context) error {
			out, usage, err := l.AI.Complete(ctx, prompt.RefineSystem(), prompt.RefineUser(c.section, window))
			if err != nil {
				return err
			}
			if err := meter.AddTokens(usage); err != nil {
				return err
			}
			raw = out
			return nil
		})
		if err != nil {
			log.Printf("section %s: refine failed, keeping first-pass start: %v", c.section, err)
			continue
		}

		var resp struct {
			Page       int     `json:"page"`
			Confidence float64 `json:"confidence"`
		}
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			continue
		}
		if resp.Page >= 1 && resp.Page <= len(pages) {
			cands[i].start = resp.Page
			cands[i].confidence = clamp01(resp.Confidence)
		}
	}
	return cands
}

// buildRanges: starts diurutkan global; end satu section adalah start
// section berikutnya minus satu. Ranges untuk nama yang sama tetap ordered.
func buildRanges(cands []candidate, pageCount int, minConf float64) domsec.Set {
	var kept []candidate
	for _, c := range cands {
		if c.confidence >= minConf {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].start != kept[j].start {
			return kept[i].start < kept[j].start
		}
		return kept[i].section < kept[j].section
	})

	var set domsec.Set
	for i, c := range kept {
		end := pageCount
		if i+1 < len(kept) && kept[i+1].start > c.start {
			end = kept[i+1].start - 1
		}
		r := domsec.Range{
			Section:    c.section,
			Variant:    c.variant,
			Start:      c.start,
			End:        end,
			Confidence: c.confidence,
		}.Clamp(pageCount)
		set = append(set, r)
	}
	return set
}

func normalizeVariant(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case domsec.VariantStandalone:
		return domsec.VariantStandalone
	case domsec.VariantConsolidated:
		return domsec.VariantConsolidated
	}
	return ""
}

func head(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// mundur ke rune boundary: teks OCR bisa multi-byte, dan potongan
	// di tengah rune menghasilkan UTF-8 invalid
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
