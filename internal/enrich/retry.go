package enrich

import (
	"context"
	"time"
)

// RetryPolicy bounds how transient enrichment failures are retried. The
// schedule is exponential, doubling from Initial up to Max.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// DefaultRetryPolicy retries twice after the first attempt with short waits.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Initial:     500 * time.Millisecond,
		Max:         8 * time.Second,
	}
}

// Backoff returns the wait before the given attempt (attempt 1 is the first
// retry).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	wait := p.Initial
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		wait *= 2
		if p.Max > 0 && wait >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && wait > p.Max {
		return p.Max
	}
	return wait
}

// sleep waits for the duration unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
