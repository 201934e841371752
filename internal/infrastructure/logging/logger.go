package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tmarsden/edgeflow-core/internal/infrastructure/config"
)

// Logger is a thin wrapper around slog.Logger so packages depend on one
// local type rather than on slog directly.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of the config. Format picks
// the handler (json or text), output picks the stream, and every record
// carries the service name and version.
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	h = h.WithAttrs([]slog.Attr{
		slog.String("service", "edgeflow"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a derived logger carrying extra default attributes, typically
// a component tag:
//
//	engineLog := logger.With("component", "engine")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used before the config file has been
// loaded. JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
