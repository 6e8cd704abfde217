package common

import (
	"io"
	"log/slog"
	"os"
)

// SetupLogger installs the process-wide slog default on stderr. The format
// is "json" for machine-readable output; anything else gets the text handler.
func SetupLogger(level slog.Level, format string) error {
	slog.SetDefault(slog.New(NewLogHandler(os.Stderr, level, format)))
	return nil
}

// NewLogHandler builds a slog handler writing to w in the given format.
func NewLogHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
