package verdict

import (
	"math"

	"github.com/annualguard/annualguard/internal/domain/flags"
)

// Category weights, jumlah tepat 1.0. Auditor dan cash flow paling berat.
var categoryWeights = map[flags.Category]float64{
	flags.CategoryAuditor:        0.20,
	flags.CategoryCashFlow:       0.20,
	flags.CategoryRelatedParty:   0.15,
	flags.CategoryPromoter:       0.15,
	flags.CategoryGovernance:     0.10,
	flags.CategoryBalanceSheet:   0.08,
	flags.CategoryRevenueQuality: 0.07,
	flags.CategoryTextual:        0.05,
}

// Weight exposes the fixed weight for one category.
func Weight(c flags.Category) float64 { return categoryWeights[c] }

// Score is the deterministic scoring engine: identical detector inputs
// always yield an identical verdict. No clock, no randomness — the caller
// stamps ID/tenant/timestamps afterwards.
//
// Per-category: sum of severity points over triggered flags, divided by the
// category's maximum possible points, scaled 0-100, clamped.
// Overall: round(sum weight_c * score_c), clamped 0-100.
func Score(results []flags.Result, catalog []flags.Detector) (overall int, level RiskLevel, categoryScores map[flags.Category]int, counts flags.SeverityCounts) {
	maxPoints := flags.MaxPoints(catalog)

	earned := make(map[flags.Category]int)
	for _, r := range results {
		if !r.Triggered {
			continue
		}
		earned[r.Category] += r.Severity.Points()
		counts.Add(r.Severity)
	}

	categoryScores = make(map[flags.Category]int, len(maxPoints))
	weighted := 0.0
	for _, c := range flags.Categories() {
		max := maxPoints[c]
		score := 0
		if max > 0 {
			score = clamp(int(math.Round(100 * float64(earned[c]) / float64(max))))
		}
		categoryScores[c] = score
		weighted += categoryWeights[c] * float64(score)
	}

	overall = clamp(int(math.Round(weighted)))
	return overall, Band(overall), categoryScores, counts
}

// Band fixed threshold ladder atas overall score
func Band(score int) RiskLevel {
	switch {
	case score < 25:
		return RiskLow
	case score < 50:
		return RiskModerate
	case score < 75:
		return RiskElevated
	default:
		return RiskHigh
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
