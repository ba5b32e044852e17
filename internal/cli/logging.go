package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/forgehomes/lead-intake/internal/constants"
)

// LevelFromVerbosity maps the number of -v flags to a log level: none keeps the default level,
// one enables info and two or more enable debug.
func LevelFromVerbosity(count int) slog.Level {
	switch {
	case count <= 0:
		return constants.DefaultLogLevel
	case count == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// NewLogger returns a logger writing to w, as text or as JSON lines.
func NewLogger(w io.Writer, verbosity int, jsonLogs bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: LevelFromVerbosity(verbosity)}
	if jsonLogs {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetSlog installs the service logger, writing to stderr, as the default logger.
func SetSlog(verbosity int, jsonLogs bool) {
	slog.SetDefault(NewLogger(os.Stderr, verbosity, jsonLogs))
}
