package financials

import (
	"context"
	"strings"

	"github.com/annualguard/annualguard/internal/domain/document"
	domfin "github.com/annualguard/annualguard/internal/domain/financials"
	domsec "github.com/annualguard/annualguard/internal/domain/sections"
)

// Extractor pulls financial facts from the pages INSIDE located section
// ranges only — fraksi kecil dari total halaman.
type Extractor struct {
	// MinPageConfidence: halaman di bawah ini dilewati, datanya tidak
	// bisa dipercaya untuk angka.
	MinPageConfidence float64
}

// Extract walks every quantitative section range and feeds the rows into a
// FactSet. Pure CPU; ctx hanya untuk cancellation antar range.
func (e *Extractor) Extract(ctx context.Context, pages []document.Page, set domsec.Set) (*domfin.FactSet, error) {
	facts := domfin.NewFactSet()
	for _, desc := range domsec.Catalog() {
		if !desc.Quantitative {
			continue
		}
		for _, r := range set.ByName(desc.Name) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e.extractRange(pages, r, facts)
		}
	}
	return facts, nil
}

// extractRange parses one section range. Tabel bisa menyambung lewat page
// break: header tahun dibawa ke halaman berikutnya, dan baris label yang
// sama dalam satu table di-skip supaya stitching tidak menduplikasi row.
func (e *Extractor) extractRange(pages []document.Page, r domsec.Range, facts *domfin.FactSet) {
	minConf := e.MinPageConfidence
	if minConf <= 0 {
		minConf = 0.2
	}

	var years []int
	scale := domfin.ScaleCrore
	seen := make(map[domfin.Key]bool) // rows already taken from the current table

	for _, p := range pages {
		if p.Number < r.Start || p.Number > r.End {
			continue
		}
		if p.Confidence < minConf {
			continue // zero/low-confidence page: unreliable, not fatal
		}

		for _, line := range strings.Split(p.Text, "\n") {
			if hdr := parseYearHeader(line); hdr != nil {
				// header baru = tabel baru; reset stitching state. Scale
				// dipertahankan — unit hint biasanya di caption di atas header.
				years = hdr
				seen = make(map[domfin.Key]bool)
				if s, ok := domfin.DetectScaleHint(line); ok {
					scale = s
				}
				continue
			}
			if s, ok := domfin.DetectScaleHint(line); ok {
				scale = s
			}
			if years == nil {
				continue // belum ketemu header, baris tidak bisa dipetakan ke tahun
			}

			label, cells, ok := parseRow(line)
			if !ok {
				continue
			}
			metric, ok := matchMetric(label)
			if !ok {
				continue
			}
			for i, cell := range cells {
				if i >= len(years) {
					break
				}
				raw, percent, ok := domfin.ParseAmount(cell)
				if !ok {
					continue
				}
				key := domfin.Key{Metric: metric, Year: years[i]}
				if seen[key] {
					continue // continuation page repeated the row
				}
				seen[key] = true
				facts.Add(domfin.Fact{
					Metric:     metric,
					Year:       years[i],
					Value:      domfin.Normalize(metric, raw, percent, scale),
					Confidence: p.Confidence,
					Section:    r.Section,
					Page:       p.Number,
				})
			}
		}
	}
}
