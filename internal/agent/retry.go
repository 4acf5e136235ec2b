package agent

import (
	"context"
	"time"

	"github.com/docflow/docflow/internal/domain"
)

// RetryPolicy governs the reliability stage of spec §4.8 step 6:
// bounded exponential backoff, retrying only transient_io and
// renderer_transient failures. Grounded on
// pkg/orchestration/orchestrator.go's RetryPolicy/DefaultRetryPolicy
// (MaxAttempts/Backoff/MaxBackoff), generalized from task-lease retry
// to single-command retry.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy mirrors the teacher's DefaultRetryPolicy values
// (3 attempts), scaled to command-level backoff rather than task leases.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: 100 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// withRetry runs fn, retrying while its error is retryable, up to
// MaxAttempts, with backoff doubling each attempt capped at MaxBackoff.
// Non-retryable errors surface immediately (spec §4.8 step 6).
func (p RetryPolicy) withRetry(ctx context.Context, fn func() (any, error)) (any, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	backoff := p.BaseBackoff
	if backoff <= 0 {
		backoff = DefaultRetryPolicy().BaseBackoff
	}
	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = DefaultRetryPolicy().MaxBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := fn()
		if err == nil {
			return value, nil
		}
		lastErr = err
		de, ok := domain.AsError(err)
		if !ok || !de.Code.Retryable() || attempt == maxAttempts {
			return nil, err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, lastErr
}
