package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrBudgetExceeded indicates the per-job token budget ran out mid-run.
// The job fails with a specific reason; analysis is never silently truncated.
var ErrBudgetExceeded = errors.New("ai token budget exceeded")
