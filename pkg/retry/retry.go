package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Classifier reports whether an error is worth retrying. Terminal errors
// stop the loop immediately and are returned as-is.
type Classifier func(error) bool

// Always treats every error as retryable.
func Always(error) bool { return true }

// Do runs fn up to 1+maxRetries times with a constant delay between
// attempts, retrying only errors the classifier accepts.
func Do(ctx context.Context, maxRetries uint64, delay time.Duration, retryable Classifier, fn func(ctx context.Context) error) error {
	if retryable == nil {
		retryable = Always
	}

	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(delay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
