package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gammadia/jeeves/server/flags"
	"github.com/spf13/viper"
)

// Base is a bare logger without attributes
var Base *slog.Logger

// logger is the server logger with default attributes
var logger *slog.Logger

func Init() error {
	var err error
	Base, err = New(os.Stdout, viper.GetString(flags.LogFormat), viper.GetString(flags.LogLevel), viper.GetBool(flags.LogSource))
	if err != nil {
		return err
	}

	logger = Base.With("component", "server")
	return nil
}

func New(w io.Writer, format, level string, source bool) (*slog.Logger, error) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	options := slog.HandlerOptions{
		AddSource: source,
		Level:     logLevel,
	}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &options)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, &options)), nil
	default:
		return nil, fmt.Errorf("unknown log format '%s'", format)
	}
}

// Component returns a logger for one part of the server.
func Component(name string) *slog.Logger {
	return Base.With("component", name)
}

// Proxies for slog.Logger methods

func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	logger.InfoContext(ctx, msg, args...)
}

func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	logger.ErrorContext(ctx, msg, args...)
}
