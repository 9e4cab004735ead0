// Package logger holds the process-wide slog logger. Commands install
// it with SetLogger; until then debug output is discarded.
package logger

import (
	"io"
	"log/slog"
	"os"
)

var log = slog.New(slog.NewTextHandler(io.Discard, nil))

func SetLogger(l *slog.Logger) {
	log = l
}

// New returns a text logger on stderr; verbose lowers the level to
// debug.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func Debug(msg string, args ...any) {
	log.Debug(msg, args...)
}
