package flags

import (
	"github.com/annualguard/annualguard/internal/domain/document"
	"github.com/annualguard/annualguard/internal/domain/financials"
	"github.com/annualguard/annualguard/internal/domain/sections"
)

// Severity tier enum
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Points nilai poin tetap per tier, dipakai scoring engine
func (s Severity) Points() int {
	switch s {
	case SeverityCritical:
		return 25
	case SeverityHigh:
		return 15
	case SeverityMedium:
		return 8
	case SeverityLow:
		return 3
	}
	return 0
}

// Category enum: 8 grouping red flag
type Category string

const (
	CategoryAuditor        Category = "auditor"
	CategoryCashFlow       Category = "cash_flow"
	CategoryRelatedParty   Category = "related_party"
	CategoryPromoter       Category = "promoter"
	CategoryGovernance     Category = "governance"
	CategoryBalanceSheet   Category = "balance_sheet"
	CategoryRevenueQuality Category = "revenue_quality"
	CategoryTextual        Category = "textual"
)

// Categories in fixed presentation order.
func Categories() []Category {
	return []Category{
		CategoryAuditor, CategoryCashFlow, CategoryRelatedParty, CategoryPromoter,
		CategoryGovernance, CategoryBalanceSheet, CategoryRevenueQuality, CategoryTextual,
	}
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	}
	c.Total++
}

// Result output satu detector, immutable setelah dibuat
type Result struct {
	FlagID         string   `json:"flag_id"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Triggered      bool     `json:"triggered"`
	Confidence     float64  `json:"confidence"`
	Evidence       string   `json:"evidence,omitempty"`
	Page           int      `json:"page,omitempty"`
	MetricValue    *float64 `json:"metric_value,omitempty"`
	ThresholdValue *float64 `json:"threshold_value,omitempty"`
	PreviousValue  *float64 `json:"previous_value,omitempty"`
	YoYChange      *float64 `json:"yoy_change,omitempty"`
}

// Inputs adalah satu-satunya data yang boleh dilihat detector; detectors
// never read each other's results.
type Inputs struct {
	Facts      *financials.FactSet
	Sections   sections.Set
	Pages      []document.Page
	FiscalYear int
}

// SectionText joined text untuk satu section, "" kalau absent
func (in Inputs) SectionText(n sections.Name) string {
	if !in.Sections.Has(n) {
		return ""
	}
	return in.Sections.JoinText(n, in.Pages)
}

// Kind tagged variant discriminator
type Kind string

const (
	KindRule  Kind = "rule"
	KindModel Kind = "model"
)

// RuleFunc pure evaluation over extracted data.
type RuleFunc func(in Inputs, d Detector) Result

// RuleSpec deterministic threshold/ratio/trend check
type RuleSpec struct {
	Threshold float64 // primary policy constant, config-overridable
	Aux       float64 // secondary constant (e.g. flatness tolerance)
	MinYears  int     // lookback window; fewer years => non-trigger, confidence 0
	Eval      RuleFunc
}

// PromptSpec language-model-assisted judgment over narrative text
type PromptSpec struct {
	Section      sections.Name
	Instruction  string
	MaxChars     int
	IncludeFacts bool
}

// Detector satu entri catalog: Detector = rule(spec) | model(prompt)
type Detector struct {
	ID       string
	Category Category
	Severity Severity
	Kind     Kind
	Rule     *RuleSpec
	Prompt   *PromptSpec
}

// NotTriggered hasil null: dipakai untuk insufficient data / degraded calls
func (d Detector) NotTriggered() Result {
	return Result{FlagID: d.ID, Category: d.Category, Severity: d.Severity, Triggered: false, Confidence: 0}
}

func f64(v float64) *float64 { return &v }
