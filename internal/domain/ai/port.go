package ai

import "context"

// Usage token consumption dari satu call
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Client port untuk language model. Implementations return the raw model
// output string (JSON mode) plus token usage.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, Usage, error)
	// OCRImage runs vendor OCR on one rendered page image (PNG bytes) and
	// returns extracted text with the vendor's own confidence estimate.
	OCRImage(ctx context.Context, png []byte) (text string, confidence float64, usage Usage, err error)
}
