package utils

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry calls fn until it succeeds, returns an error that retryable rejects, or
// maxRetries retries have been spent. Delays grow exponentially from base.
func Retry(ctx context.Context, maxRetries uint64, base time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.WithMaxRetries(maxRetries, retry.NewExponential(base))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && retryable != nil && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
