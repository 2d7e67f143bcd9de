// Package retry implements the bounded exponential-backoff helper used by
// the download and sink-upload paths (spec.md §4.5.1). Grounded on the
// teacher's manual time.Sleep backoff in internal/ingester/block_fetcher.go,
// generalized into a reusable helper instead of being inlined per call site.
package retry

import (
	"context"
	"time"
)

// Do calls fn up to maxRetries+1 times. Between attempts it sleeps for
// initialBackoff * factor^attempt. It returns the last error if every
// attempt fails, or nil as soon as fn succeeds.
func Do(ctx context.Context, maxRetries int, initialBackoff time.Duration, factor float64, fn func() error) error {
	var err error
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * factor)
	}
	return err
}
