// File: internal/pipeline/retry.go
package pipeline

import (
	"context"
	"time"
)

// RetryPolicy bounds per-lesson attempts with linear backoff: the wait after
// attempt n is n times the unit.
type RetryPolicy struct {
	MaxAttempts int
	Unit        time.Duration
}

// Backoff returns how long to wait after the given (1-based) failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.Unit
}

// sleep waits d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
