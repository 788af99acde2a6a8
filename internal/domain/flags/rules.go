package flags

import (
	"fmt"
	"strings"

	"github.com/annualguard/annualguard/internal/domain/financials"
	"github.com/annualguard/annualguard/internal/domain/sections"
)

// Rule constructors. Semua rule pure dan deterministic; kalau data kurang
// dari MinYears, hasilnya triggered=false confidence=0 — tidak pernah
// extrapolate.

// latestAbove: nilai terakhir metric melewati threshold.
// above=false berarti flag ketika nilai DI BAWAH threshold.
func latestAbove(metric financials.Metric, above bool, describe string) RuleFunc {
	return func(in Inputs, d Detector) Result {
		s := in.Facts.Series(metric)
		if s.Len() < d.Rule.MinYears {
			return d.NotTriggered()
		}
		year, v, _ := s.Latest()
		fact, _ := in.Facts.Get(metric, year)
		hit := v > d.Rule.Threshold
		if !above {
			hit = v < d.Rule.Threshold
		}
		res := Result{
			FlagID: d.ID, Category: d.Category, Severity: d.Severity,
			Triggered: hit, Confidence: fact.Confidence,
			MetricValue: f64(v), ThresholdValue: f64(d.Rule.Threshold),
			Page: fact.Page,
		}
		if hit {
			res.Evidence = fmt.Sprintf("%s: %s at %s for FY%d (threshold %s)",
				d.ID, describe, fmtVal(metric, v), year, fmtVal(metric, d.Rule.Threshold))
		}
		return res
	}
}

// ratioAbove: num/den pada tahun terakhir bersama melewati threshold
func ratioAbove(num, den financials.Metric, describe string) RuleFunc {
	return func(in Inputs, d Detector) Result {
		ns, ds := in.Facts.Series(num), in.Facts.Series(den)
		if ns.Len() < d.Rule.MinYears || ds.Len() < d.Rule.MinYears {
			return d.NotTriggered()
		}
		year, nv, _ := ns.Latest()
		df, ok := in.Facts.Get(den, year)
		if !ok || df.Value == 0 {
			return d.NotTriggered()
		}
		nf, _ := in.Facts.Get(num, year)
		ratio := nv / df.Value
		hit := ratio > d.Rule.Threshold
		res := Result{
			FlagID: d.ID, Category: d.Category, Severity: d.Severity,
			Triggered: hit, Confidence: minConf(nf.Confidence, df.Confidence),
			MetricValue: f64(ratio), ThresholdValue: f64(d.Rule.Threshold),
			Page: nf.Page,
		}
		if hit {
			res.Evidence = fmt.Sprintf("%s: %s = %.2f for FY%d (threshold %.2f)",
				d.ID, describe, ratio, year, d.Rule.Threshold)
		}
		return res
	}
}

// yoyAbove: perubahan year-over-year melewati threshold (fraction)
func yoyAbove(metric financials.Metric, describe string) RuleFunc {
	return func(in Inputs, d Detector) Result {
		s := in.Facts.Series(metric)
		if s.Len() < d.Rule.MinYears {
			return d.NotTriggered()
		}
		change, ok := s.YoYChange()
		if !ok {
			return d.NotTriggered()
		}
		year, v, _ := s.Latest()
		fact, _ := in.Facts.Get(metric, year)
		prev := s.Values[s.Len()-2]
		hit := change > d.Rule.Threshold
		res := Result{
			FlagID: d.ID, Category: d.Category, Severity: d.Severity,
			Triggered: hit, Confidence: fact.Confidence,
			MetricValue: f64(v), ThresholdValue: f64(d.Rule.Threshold),
			PreviousValue: f64(prev), YoYChange: f64(change),
			Page: fact.Page,
		}
		if hit {
			res.Evidence = fmt.Sprintf("%s: %s moved %+.0f%% YoY in FY%d (threshold %+.0f%%)",
				d.ID, describe, change*100, year, d.Rule.Threshold*100)
		}
		return res
	}
}

// deltaAbove: kenaikan absolut (latest - previous) melewati threshold.
// Dipakai untuk metric fraction seperti pledge ratio.
func deltaAbove(metric financials.Metric, describe string) RuleFunc {
	return func(in Inputs, d Detector) Result {
		s := in.Facts.Series(metric)
		if s.Len() < d.Rule.MinYears || s.Len() < 2 {
			return d.NotTriggered()
		}
		year, v, _ := s.Latest()
		prev := s.Values[s.Len()-2]
		delta := v - prev
		fact, _ := in.Facts.Get(metric, year)
		hit := delta > d.Rule.Threshold
		res := Result{
			FlagID: d.ID, Category: d.Category, Severity: d.Severity,
			Triggered: hit, Confidence: fact.Confidence,
			MetricValue: f64(v), ThresholdValue: f64(d.Rule.Threshold),
			PreviousValue: f64(prev), Page: fact.Page,
		}
		if hit {
			res.Evidence = fmt.Sprintf("%s: %s rose from %s to %s in FY%d",
				d.ID, describe, fmtVal(metric, prev), fmtVal(metric, v), year)
		}
		return res
	}
}

// dropAbove: penurunan absolut (previous - latest) melewati threshold
func dropAbove(metric financials.Metric, describe string) RuleFunc {
	return func(in Inputs, d Detector) Result {
		s := in.Facts.Series(metric)
		if s.Len() < d.Rule.MinYears || s.Len() < 2 {
			return d.NotTriggered()
		}
		year, v, _ := s.Latest()
		prev := s.Values[s.Len()-2]
		drop := prev - v
		fact, _ := in.Facts.Get(metric, year)
		hit := drop > d.Rule.Threshold
		res := Result{
			FlagID: d.ID, Category: d.Category, Severity: d.Severity,
			Triggered: hit, Confidence: fact.Confidence,
			MetricValue: f64(v), ThresholdValue: f64(d.Rule.Threshold),
			PreviousValue: f64(prev), Page: fact.Page,
		}
		if hit {
			res.Evidence = fmt.Sprintf("%s: %s fell from %s to %s in FY%d",
				d.ID, describe, fmtVal(metric, prev), fmtVal(metric, v), year)
		}
		return res
	}
}

// negativeStreak: metric negatif di SEMUA tahun window
func negativeStreak(metric financials.Metric, describe string) RuleFunc {
	return func(in Inputs, d Detector) Result {
		s := in.Facts.Series(metric)
		if s.Len() < d.Rule.MinYears {
			return d.NotTriggered()
		}
		window := s.Values[s.Len()-d.Rule.MinYears:]
		hit := true
		for _, v := range window {
			if v >= 0 {
				hit = false
				break
			}
		}
		year, v, _ := s.Latest()
		fact, _ := in.Facts.Get(metric, year)
		res := Result{
			FlagID: d.ID, Category: d.Category, Severity: d.Severity,
			Triggered: hit, Confidence: fact.Confidence,
			MetricValue: f64(v), Page: fact.Page,
		}
		if hit {
			res.Evidence = fmt.Sprintf("%s: %s negative for %d consecutive years through FY%d",
				d.ID, describe, d.Rule.MinYears, year)
		}
		return res
	}
}

// divergence: CAGR metric pertumbuhan > threshold sementara CAGR metric
// pembanding tetap flat (di bawah Aux). Klasik profit naik, kas tidak ikut.
func divergence(growing, flat financials.Metric, describe string) RuleFunc {
	return func(in Inputs, d Detector) Result {
		gs, fs := in.Facts.Series(growing), in.Facts.Series(flat)
		if gs.Len() < d.Rule.MinYears || fs.Len() < d.Rule.MinYears {
			return d.NotTriggered()
		}
		gCAGR, ok1 := gs.CAGR()
		fCAGR, ok2 := fs.CAGR()
		if !ok1 || !ok2 {
			return d.NotTriggered()
		}
		year, gv, _ := gs.Latest()
		gf, _ := in.Facts.Get(growing, year)
		_, fv, _ := fs.Latest()
		hit := gCAGR > d.Rule.Threshold && fCAGR < d.Rule.Aux
		res := Result{
			FlagID: d.ID, Category: d.Category, Severity: d.Severity,
			Triggered: hit, Confidence: gf.Confidence,
			MetricValue: f64(gCAGR), ThresholdValue: f64(d.Rule.Threshold),
			Page: gf.Page,
		}
		if hit {
			res.Evidence = fmt.Sprintf("%s: %s — %s CAGR %.0f%% over %d years while %s CAGR %.0f%% (latest %s=%.1f, %s=%.1f)",
				d.ID, describe, growing, gCAGR*100, d.Rule.MinYears, flat, fCAGR*100, growing, gv, flat, fv)
		}
		return res
	}
}

// growthGap: growth(a) - growth(b) YoY melewati threshold
// (receivables tumbuh jauh lebih cepat dari revenue)
func growthGap(a, b financials.Metric, describe string) RuleFunc {
	return func(in Inputs, d Detector) Result {
		as, bs := in.Facts.Series(a), in.Facts.Series(b)
		if as.Len() < d.Rule.MinYears || bs.Len() < d.Rule.MinYears {
			return d.NotTriggered()
		}
		ag, ok1 := as.YoYChange()
		bg, ok2 := bs.YoYChange()
		if !ok1 || !ok2 {
			return d.NotTriggered()
		}
		gap := ag - bg
		year, _, _ := as.Latest()
		af, _ := in.Facts.Get(a, year)
		hit := gap > d.Rule.Threshold
		res := Result{
			FlagID: d.ID, Category: d.Category, Severity: d.Severity,
			Triggered: hit, Confidence: af.Confidence,
			MetricValue: f64(gap), ThresholdValue: f64(d.Rule.Threshold),
			YoYChange: f64(ag), Page: af.Page,
		}
		if hit {
			res.Evidence = fmt.Sprintf("%s: %s grew %+.0f%% vs %s %+.0f%% in FY%d",
				d.ID, a, ag*100, b, bg*100, year)
		}
		return res
	}
}

// phraseAny: deterministic text rule — section text mengandung salah satu
// frasa. Evidence memuat frasa yang match plus konteks sekitarnya.
func phraseAny(section sections.Name, phrases ...string) RuleFunc {
	return func(in Inputs, d Detector) Result {
		// missing section is insufficient data, bukan error
		if !in.Sections.Has(section) {
			return d.NotTriggered()
		}
		for _, r := range in.Sections.ByName(section) {
			for _, p := range in.Pages {
				if p.Number < r.Start || p.Number > r.End {
					continue
				}
				lower := strings.ToLower(p.Text)
				for _, phrase := range phrases {
					if idx := strings.Index(lower, phrase); idx >= 0 {
						return Result{
							FlagID: d.ID, Category: d.Category, Severity: d.Severity,
							Triggered:  true,
							Confidence: p.Confidence,
							Evidence:   fmt.Sprintf("%q found: %s", phrase, excerpt(p.Text, idx, 160)),
							Page:       p.Number,
						}
					}
				}
			}
		}
		res := d.NotTriggered()
		// section was present and searched; non-trigger is a real verdict here
		res.Confidence = sectionConfidence(in.Sections, section)
		return res
	}
}

func sectionConfidence(set sections.Set, n sections.Name) float64 {
	best := 0.0
	for _, r := range set.ByName(n) {
		if r.Confidence > best {
			best = r.Confidence
		}
	}
	return best
}

func excerpt(text string, idx, width int) string {
	start := idx - width/4
	if start < 0 {
		start = 0
	}
	end := idx + width
	if end > len(text) {
		end = len(text)
	}
	return strings.Join(strings.Fields(text[start:end]), " ")
}

func minConf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func fmtVal(m financials.Metric, v float64) string {
	if m.IsFraction() {
		return fmt.Sprintf("%.1f%%", v*100)
	}
	return fmt.Sprintf("%.1f cr", v)
}
