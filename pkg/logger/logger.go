// Package logger provides the slog setup shared by every component: JSON
// output, a configurable minimum level, and a per-component attribute so log
// streams from the scheduler, orchestrator, and HTTP surface stay separable.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON-formatted logger writing to stdout. Level accepts
// "debug", "info", "warn", "error"; anything else falls back to info.
func New(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

// WithComponent returns a child logger tagged with a component name.
func WithComponent(log *slog.Logger, name string) *slog.Logger {
	return log.With(slog.String("component", name))
}

// NewNope creates a no-op logger that discards all output.
// Use this as a default when logging is not configured.
func NewNope() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
