package dispatch

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a subtask's reasoning call is repeated.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, first one included.
	MaxAttempts int
	// Backoff is the wait before each retry; the last entry repeats.
	Backoff []time.Duration
	// RetryTransport also retries reasoning service failures. Schema
	// violations are always retried.
	RetryTransport bool
}

// DefaultRetryPolicy makes up to three calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Backoff:        []time.Duration{250 * time.Millisecond, time.Second},
		RetryTransport: true,
	}
}

// Attempts returns MaxAttempts, at least 1.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait before the n-th retry (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	if len(p.Backoff) == 0 || n < 1 {
		return 0
	}
	if n > len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[n-1]
}

// Wait blocks for Delay(n) or until ctx is done.
func (p RetryPolicy) Wait(ctx context.Context, n int) error {
	d := p.Delay(n)
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
