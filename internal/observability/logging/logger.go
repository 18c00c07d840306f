// Package logging builds the process-wide structured logger. All three
// binaries log JSON to stdout with a service attribute so log pipelines can
// split api/worker/mcp streams.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger returns a JSON slog logger tagged with the service name and
// installs it as the process default, so libraries that log through
// slog.Default inherit the same handler.
func NewJSONLogger(service, level string) *slog.Logger {
	logger := NewJSONLoggerTo(os.Stdout, service, level)
	slog.SetDefault(logger)
	return logger
}

// NewJSONLoggerTo writes to an explicit sink; tests use it to capture output.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// ParseLevel maps a config string to a slog level; unknown values fall back
// to info rather than erroring, matching the permissive env-config style.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
