package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger and installs it as slog's default.
// Unknown levels fall back to info; format is "json" or "text".
func New(level, format string) *slog.Logger {
	l := NewWithWriter(os.Stderr, level, format)
	slog.SetDefault(l)
	return l
}

// NewWithWriter is New without the global side effect.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Used as the default for
// optional logger dependencies.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
