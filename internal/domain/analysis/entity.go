package analysis

import (
	"time"

	"github.com/annualguard/annualguard/internal/domain/verdict"
)

// JobID identifier type
type JobID string

// State enum untuk pipeline state machine
type State string

const (
	StateQueued               State = "QUEUED"
	StateExtracting           State = "EXTRACTING"
	StateLocatingSections     State = "LOCATING_SECTIONS"
	StateExtractingFinancials State = "EXTRACTING_FINANCIALS"
	StateDetectingFlags       State = "DETECTING_FLAGS"
	StateScoring              State = "SCORING"
	StateCompleted            State = "COMPLETED"
	StateFailed               State = "FAILED"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Percent posisi progress untuk setiap state, monotonically non-decreasing
func (s State) Percent() int {
	switch s {
	case StateQueued:
		return 0
	case StateExtracting:
		return 10
	case StateLocatingSections:
		return 40
	case StateExtractingFinancials:
		return 55
	case StateDetectingFlags:
		return 70
	case StateScoring:
		return 90
	case StateCompleted, StateFailed:
		return 100
	}
	return 0
}

// ProgressEvent satu event di progress channel
type ProgressEvent struct {
	Percent int       `json:"percent"`
	Step    string    `json:"step"`
	State   State     `json:"state"`
	At      time.Time `json:"at"`
}

// Job handle untuk satu analysis run
type Job struct {
	ID            JobID            `json:"id"`
	TenantID      string           `json:"tenant_id"`
	DocumentHash  string           `json:"document_hash"`
	Company       string           `json:"company,omitempty"`
	FiscalYear    int              `json:"fiscal_year,omitempty"`
	State         State            `json:"state"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	Events        []ProgressEvent  `json:"events,omitempty"`
	Verdict       *verdict.Verdict `json:"verdict,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
	CacheHit      bool             `json:"cache_hit,omitempty"`
}

// Usage konsumsi external call per job, dilaporkan ke billing collaborator.
// Core tidak enforce quota sendiri.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	VendorOCRCalls   int `json:"vendor_ocr_calls"`
}

// Failure satu kegagalan stage yang direkam untuk audit
type Failure struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	JobID     string    `json:"job_id"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
