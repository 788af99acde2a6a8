package application

import (
	"sync"

	"github.com/annualguard/annualguard/internal/domain/ai"
	"github.com/annualguard/annualguard/internal/domain/analysis"
)

// Meter menghitung konsumsi external call satu job: token LLM dan vendor
// OCR calls. Thread-safe — stages memanggil dari goroutine paralel.
type Meter struct {
	mu          sync.Mutex
	tokenBudget int // 0 = unlimited
	prompt      int
	completion  int
	ocrCalls    int
}

func NewMeter(tokenBudget int) *Meter {
	return &Meter{tokenBudget: tokenBudget}
}

// AddTokens records usage from one model call. Returns ai.ErrBudgetExceeded
// once the running total crosses the budget.
func (m *Meter) AddTokens(u ai.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompt += u.PromptTokens
	m.completion += u.CompletionTokens
	if m.tokenBudget > 0 && m.prompt+m.completion > m.tokenBudget {
		return ai.ErrBudgetExceeded
	}
	return nil
}

// AddOCRCall satu vendor OCR call
func (m *Meter) AddOCRCall() {
	m.mu.Lock()
	m.ocrCalls++
	m.mu.Unlock()
}

// Usage snapshot untuk usage reporter / verdict
func (m *Meter) Usage() analysis.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return analysis.Usage{
		PromptTokens:     m.prompt,
		CompletionTokens: m.completion,
		VendorOCRCalls:   m.ocrCalls,
	}
}
