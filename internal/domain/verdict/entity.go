package verdict

import (
	"time"

	"github.com/annualguard/annualguard/internal/domain/flags"
)

// VerdictID identifier type
type VerdictID string

// RiskLevel banding atas overall score
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskElevated RiskLevel = "ELEVATED"
	RiskHigh     RiskLevel = "HIGH"
)

// Aggregate Root: Verdict — output terminal satu analysis run. Immutable
// setelah dibuat; re-run menghasilkan verdict baru, bukan update.
type Verdict struct {
	ID                VerdictID               `json:"id"`
	TenantID          string                  `json:"tenant_id"`
	DocumentHash      string                  `json:"document_hash"`
	Company           string                  `json:"company,omitempty"`
	FiscalYear        int                     `json:"fiscal_year,omitempty"`
	OverallScore      int                     `json:"overall_score"`
	RiskLevel         RiskLevel               `json:"risk_level"`
	CategoryScores    map[flags.Category]int  `json:"category_scores"`
	Counts            flags.SeverityCounts    `json:"counts"`
	Flags             []flags.Result          `json:"red_flags"`
	SkippedDetectors  []string                `json:"skipped_detectors,omitempty"`
	ThresholdsVersion string                  `json:"thresholds_version,omitempty"`
	PromptTokens      int                     `json:"prompt_tokens"`
	CompletionTokens  int                     `json:"completion_tokens"`
	VendorOCRCalls    int                     `json:"vendor_ocr_calls"`
	ArtifactURL       string                  `json:"artifact_url,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}
