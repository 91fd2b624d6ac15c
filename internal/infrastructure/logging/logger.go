package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
)

// Logger wraps slog.Logger with rigdash default fields.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from the logging section of the config.
//
// JSON output is the production default. The "text" format goes through
// tint so console sessions against a live rig stay readable; Color toggles
// its ANSI escapes.
func New(cfg config.LoggingConfig, version string) *Logger {
	return newWithWriter(cfg, version, outputFor(cfg.Output))
}

func newWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = tint.NewHandler(output, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !cfg.Color,
		})
	default:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "rigdash"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func outputFor(name string) io.Writer {
	if strings.ToLower(name) == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel converts a string log level to slog.Level.
// Unrecognised values fall back to info.
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

// With returns a new Logger with additional default attributes.
//
//	pollLog := logger.With("component", "poller")
//	pollLog.Info("round complete") // Includes component=poller
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default creates a logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
