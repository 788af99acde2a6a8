package application

import (
	"context"
	"errors"
	"time"

	"github.com/annualguard/annualguard/internal/domain/ai"
)

// RetryPolicy bounded retry dengan exponential backoff untuk external call
// (vendor OCR, language model). Zero value berarti satu attempt tanpa retry.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Retry runs fn up to Attempts times. Context cancellation and budget
// exhaustion are permanent: tidak ada gunanya retry.
func Retry(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		// permanence dilihat dari ctx milik caller, bukan dari error fn:
		// per-call timeout di dalam fn adalah kegagalan transient yang
		// justru harus di-retry
		if ctx.Err() != nil || errors.Is(err, ai.ErrBudgetExceeded) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
