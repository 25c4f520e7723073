package resilience

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry runs fn with exponential backoff starting at delay, at most
// maxRetries extra times. Only errors for which retryable returns true are
// retried; any other error, and the last retryable one, is returned as is.
func Retry(ctx context.Context, maxRetries uint64, delay time.Duration, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(delay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
