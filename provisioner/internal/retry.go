package internal

import (
	"context"
	"time"
)

// BaseDelay is the wait before the second attempt. It doubles after every
// further failure.
var BaseDelay = 100 * time.Millisecond

// Retry calls fn up to maxAttempts times with exponential backoff. It returns
// the last error if all attempts fail, or ctx.Err() if ctx is done while
// waiting between attempts.
func Retry(ctx context.Context, maxAttempts int, fn func() error) error {
	_, err := RetryResult(ctx, maxAttempts, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryResult is like Retry but for functions that return a value.
func RetryResult[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var result T
	var err error
	for i := 0; i < maxAttempts; i++ {
		if result, err = fn(); err == nil {
			return result, nil
		}
		if i < maxAttempts-1 {
			select {
			case <-time.After(BaseDelay << i):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}
	return result, err
}
