package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init sets the default slog logger. Logs always go to stderr so stdout stays
// free for the rewritten document; json selects the JSON handler.
func Init(json bool, level slog.Level) {
	slog.SetDefault(New(os.Stderr, json, level))
}

func New(w io.Writer, json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel converts "debug", "info", "warn" or "error" to a slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
