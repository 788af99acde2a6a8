package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annualguard/annualguard/internal/domain/ai"
)

func TestRetryEventualSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPerCallTimeoutIsTransient(t *testing.T) {
	// timeout per-call (dibuat di dalam fn) harus di-retry; hanya ctx
	// caller yang menentukan permanence
	attempts := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		return fmt.Errorf("model call: %w", context.DeadlineExceeded)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, attempts)
}

func TestRetryCallerCancellationPermanent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Retry(ctx, RetryPolicy{Attempts: 5, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		cancel()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryBudgetExceededPermanent(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 5, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		return fmt.Errorf("meter: %w", ai.ErrBudgetExceeded)
	})
	assert.ErrorIs(t, err, ai.ErrBudgetExceeded)
	assert.Equal(t, 1, attempts)
}
