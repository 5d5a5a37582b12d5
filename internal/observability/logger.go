package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/flood-data-etl/internal/config"
	slogmulti "github.com/samber/slog-multi"
)

// NewLogger builds the service logger from configuration. When LogFile is
// set, records fan out to stderr as text and to the file as JSON. The
// returned cleanup closes the file.
func NewLogger(cfg *config.Config) (*slog.Logger, func() error) {
	level := ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" {
		return slog.New(newHandler(os.Stderr, cfg.LogFormat, level)), func() error { return nil }
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(newHandler(os.Stderr, cfg.LogFormat, level))
		logger.Error("failed to open log file, using stderr only", "error", err, "file", cfg.LogFile)
		return logger, func() error { return nil }
	}
	return NewFanoutLogger(os.Stderr, file, level), file.Close
}

// NewFanoutLogger writes text records to console and JSON records to file.
func NewFanoutLogger(console, file io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(console, opts),
		slog.NewJSONHandler(file, opts),
	))
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown
// values default to info.
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
