// Package backoff holds the exponential retry schedule shared by the
// generation client and the answer pipeline.
package backoff

import (
	"context"
	"time"
)

// Delay returns the wait before attempt n (n >= 2): base, 2*base, 4*base...
// Attempt 1 and a non-positive base wait nothing.
func Delay(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 2 {
		return 0
	}
	return base * time.Duration(1<<(attempt-2))
}

// Wait blocks for d or until ctx is done, returning ctx.Err() in the latter case.
func Wait(ctx context.Context, d time.Duration) error {
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
