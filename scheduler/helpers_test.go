package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestConfig() Config {
	return Config{
		Logger:      slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError})),
		EventBuffer: 16,
	}
}

type nopLauncher struct{}

func (nopLauncher) Launch(context.Context, *Worker) error    { return nil }
func (nopLauncher) Terminate(context.Context, *Worker) error { return nil }

func waitForEvent[T Event](t *testing.T, events <-chan Event) T {
	t.Helper()
	for {
		select {
		case ev := <-events:
			if typed, ok := ev.(T); ok {
				return typed
			}
		case <-time.After(5 * time.Second):
			var zero T
			t.Fatalf("timed out waiting for event %T", zero)
			return zero
		}
	}
}
