package scheduler

import (
	"fmt"
	"io"
	"log/slog"
)

type Config struct {
	Logger *slog.Logger `json:"-"`
	// Capacity of each subscriber channel. Events are dropped for
	// subscribers that fall this far behind.
	EventBuffer int `json:"event-buffer"`
}

func DefaultConfig() Config {
	return Config{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		EventBuffer: 64,
	}
}

func Validate(config Config) error {
	if config.EventBuffer < 0 {
		return fmt.Errorf("event-buffer must not be negative")
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}
