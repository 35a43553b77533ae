// Package logging builds the structured JSON loggers used across the service.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON logger on stdout at the given level, tagged with the
// service name and environment.
func New(level, app, env string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, slog.String("app", app), slog.String("env", env))
}

// NewWithWriter creates a JSON logger writing to w. Unknown levels fall back to info.
func NewWithWriter(w io.Writer, level string, attrs ...slog.Attr) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	if len(attrs) == 0 {
		return slog.New(handler)
	}
	return slog.New(handler.WithAttrs(attrs))
}

// ParseLevel maps a LOG_LEVEL value to a slog level. "warning" is accepted as warn.
func ParseLevel(level string) slog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
