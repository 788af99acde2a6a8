package flags

import (
	"github.com/annualguard/annualguard/internal/domain/financials"
	"github.com/annualguard/annualguard/internal/domain/sections"
)

// Catalog builds the full detector list once at startup. Caller passes
// threshold overrides dari config (keyed by flag id); nilai default di sini
// adalah policy value yang bisa dituning tanpa rebuild.
//
// Daftar ini immutable by convention: orchestrator menerima slice ini by
// reference dan tidak ada state global.
func Catalog(thresholdOverrides map[string]float64) []Detector {
	rule := func(id string, cat Category, sev Severity, spec RuleSpec) Detector {
		if v, ok := thresholdOverrides[id]; ok {
			spec.Threshold = v
		}
		return Detector{ID: id, Category: cat, Severity: sev, Kind: KindRule, Rule: &spec}
	}
	model := func(id string, cat Category, sev Severity, spec PromptSpec) Detector {
		if spec.MaxChars == 0 {
			spec.MaxChars = 6000
		}
		return Detector{ID: id, Category: cat, Severity: sev, Kind: KindModel, Prompt: &spec}
	}

	return []Detector{
		// ---- auditor ----
		rule("qualified_opinion", CategoryAuditor, SeverityCritical, RuleSpec{
			Eval: phraseAny(sections.AuditorsReport,
				"qualified opinion", "basis for qualified opinion", "except for the effects"),
		}),
		rule("adverse_or_disclaimer", CategoryAuditor, SeverityCritical, RuleSpec{
			Eval: phraseAny(sections.AuditorsReport,
				"adverse opinion", "disclaimer of opinion", "do not express an opinion"),
		}),
		rule("going_concern_doubt", CategoryAuditor, SeverityHigh, RuleSpec{
			Eval: phraseAny(sections.AuditorsReport,
				"material uncertainty related to going concern", "significant doubt upon the entity's ability to continue as a going concern"),
		}),
		rule("emphasis_of_matter", CategoryAuditor, SeverityMedium, RuleSpec{
			Eval: phraseAny(sections.AuditorsReport, "emphasis of matter"),
		}),
		rule("audit_fee_spike", CategoryAuditor, SeverityLow, RuleSpec{
			Threshold: 0.5, MinYears: 2,
			Eval: yoyAbove(financials.MetricAuditFees, "audit fees"),
		}),
		model("auditor_opinion_nuance", CategoryAuditor, SeverityHigh, PromptSpec{
			Section: sections.AuditorsReport,
			Instruction: "Read this auditor's report excerpt. Flag hedged or unusually caveated opinion language that stops short of a formal qualification: heavy reliance on management representations, scope limitations described but not qualified on, or key audit matters describing unresolved accounting disputes.",
		}),

		// ---- cash flow ----
		rule("cfo_pat_divergence", CategoryCashFlow, SeverityHigh, RuleSpec{
			Threshold: 0.15, Aux: 0.05, MinYears: 3,
			Eval: divergence(financials.MetricPAT, financials.MetricCFO, "profit growing without operating cash"),
		}),
		rule("negative_cfo_streak", CategoryCashFlow, SeverityHigh, RuleSpec{
			MinYears: 3,
			Eval:     negativeStreak(financials.MetricCFO, "operating cash flow"),
		}),
		rule("cfo_below_pat", CategoryCashFlow, SeverityMedium, RuleSpec{
			Threshold: 2.0, MinYears: 1,
			Eval: ratioAbove(financials.MetricPAT, financials.MetricCFO, "PAT to CFO ratio"),
		}),

		// ---- related party ----
		rule("rpt_to_revenue", CategoryRelatedParty, SeverityHigh, RuleSpec{
			Threshold: 0.10, MinYears: 1,
			Eval: ratioAbove(financials.MetricRPTAmount, financials.MetricRevenue, "related-party transactions to revenue"),
		}),
		rule("loans_to_related_parties", CategoryRelatedParty, SeverityHigh, RuleSpec{
			Threshold: 0.05, MinYears: 1,
			Eval: ratioAbove(financials.MetricLoansToRelated, financials.MetricNetWorth, "loans to related parties vs net worth"),
		}),
		rule("rpt_spike", CategoryRelatedParty, SeverityMedium, RuleSpec{
			Threshold: 1.0, MinYears: 2,
			Eval: yoyAbove(financials.MetricRPTAmount, "related-party transaction value"),
		}),

		// ---- promoter / ownership ----
		rule("promoter_pledge_high", CategoryPromoter, SeverityHigh, RuleSpec{
			Threshold: 0.5, MinYears: 1,
			Eval: latestAbove(financials.MetricPromoterPledge, true, "promoter shares pledged"),
		}),
		rule("promoter_pledge_rising", CategoryPromoter, SeverityMedium, RuleSpec{
			Threshold: 0.10, MinYears: 2,
			Eval: deltaAbove(financials.MetricPromoterPledge, "promoter pledge ratio"),
		}),
		rule("promoter_holding_decline", CategoryPromoter, SeverityHigh, RuleSpec{
			Threshold: 0.05, MinYears: 2,
			Eval: dropAbove(financials.MetricPromoterHolding, "promoter holding"),
		}),

		// ---- governance ----
		rule("independent_directors_low", CategoryGovernance, SeverityMedium, RuleSpec{
			Threshold: 0.33, MinYears: 1,
			Eval: latestAbove(financials.MetricIndepDirectors, false, "independent directors on board"),
		}),
		rule("board_attendance_low", CategoryGovernance, SeverityLow, RuleSpec{
			Threshold: 0.60, MinYears: 1,
			Eval: latestAbove(financials.MetricBoardAttendance, false, "average board meeting attendance"),
		}),
		model("governance_disclosure_evasive", CategoryGovernance, SeverityMedium, PromptSpec{
			Section: sections.CorporateGovernance,
			Instruction: "Read this corporate governance report excerpt. Flag evasive or non-committal disclosure: unexplained director resignations, auditor changes described without reasons, repeated postponement of committee meetings, or boilerplate answers to specific compliance questions.",
		}),

		// ---- balance sheet ----
		rule("debt_spike", CategoryBalanceSheet, SeverityHigh, RuleSpec{
			Threshold: 0.5, MinYears: 2,
			Eval: yoyAbove(financials.MetricTotalDebt, "total borrowings"),
		}),
		rule("contingent_liabilities_high", CategoryBalanceSheet, SeverityHigh, RuleSpec{
			Threshold: 0.25, MinYears: 1,
			Eval: ratioAbove(financials.MetricContingent, financials.MetricNetWorth, "contingent liabilities to net worth"),
		}),
		rule("short_term_debt_reliance", CategoryBalanceSheet, SeverityMedium, RuleSpec{
			Threshold: 0.6, MinYears: 1,
			Eval: ratioAbove(financials.MetricShortTermDebt, financials.MetricTotalDebt, "short-term share of borrowings"),
		}),
		rule("intangibles_jump", CategoryBalanceSheet, SeverityMedium, RuleSpec{
			Threshold: 1.0, MinYears: 2,
			Eval: yoyAbove(financials.MetricIntangibles, "intangible assets"),
		}),

		// ---- revenue quality ----
		rule("receivables_outpace_revenue", CategoryRevenueQuality, SeverityHigh, RuleSpec{
			Threshold: 0.20, MinYears: 2,
			Eval: growthGap(financials.MetricReceivables, financials.MetricRevenue, "receivables growing faster than revenue"),
		}),
		rule("other_income_share", CategoryRevenueQuality, SeverityMedium, RuleSpec{
			Threshold: 0.30, MinYears: 1,
			Eval: ratioAbove(financials.MetricOtherIncome, financials.MetricPAT, "other income share of profit"),
		}),
		rule("revenue_swing", CategoryRevenueQuality, SeverityLow, RuleSpec{
			Threshold: 0.5, MinYears: 2,
			Eval: yoyAbove(financials.MetricRevenue, "revenue"),
		}),

		// ---- textual / narrative ----
		model("mgmt_tone_anomaly", CategoryTextual, SeverityMedium, PromptSpec{
			Section: sections.MDNA,
			Instruction: "Read this management discussion excerpt. Flag tone anomalies: superlative-heavy promotional language, blame placed entirely on external factors for poor results, or abrupt removal of previously discussed business segments.",
		}),
		model("narrative_numbers_mismatch", CategoryTextual, SeverityHigh, PromptSpec{
			Section:      sections.MDNA,
			IncludeFacts: true,
			Instruction:  "Compare the narrative claims in this excerpt against the extracted financial figures provided. Flag clear contradictions: claims of record growth while revenue fell, claims of deleveraging while debt rose, or claimed margin expansion not visible in the numbers.",
		}),
	}
}

// MaxPoints total poin maksimum per category dari komposisi catalog;
// dipakai scoring engine sebagai penyebut.
func MaxPoints(catalog []Detector) map[Category]int {
	out := make(map[Category]int)
	for _, d := range catalog {
		out[d.Category] += d.Severity.Points()
	}
	return out
}
