package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetries(t *testing.T) {
	previous := BaseDelay
	BaseDelay = time.Millisecond
	t.Cleanup(func() { BaseDelay = previous })
}

func TestRetrySuccess(t *testing.T) {
	fastRetries(t)

	attempts := 0
	err := Retry(context.Background(), 3, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	fastRetries(t)

	attempts := 0
	err := Retry(context.Background(), 3, func() error {
		attempts++
		return errors.New("always fails")
	})

	assert.EqualError(t, err, "always fails")
	assert.Equal(t, 3, attempts)
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Retry(ctx, 10, func() error {
		attempts++
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, attempts, 10)
}

func TestRetryResultSuccess(t *testing.T) {
	fastRetries(t)

	attempts := 0
	result, err := RetryResult(context.Background(), 3, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("not yet")
		}
		return "container-id", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "container-id", result)
	assert.Equal(t, 2, attempts)
}

func TestRetryResultSingleAttemptDoesNotWait(t *testing.T) {
	start := time.Now()
	_, err := RetryResult(context.Background(), 1, func() (int, error) {
		return 0, errors.New("nope")
	})

	assert.EqualError(t, err, "nope")
	assert.Less(t, time.Since(start), BaseDelay)
}
