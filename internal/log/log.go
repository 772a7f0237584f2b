// Package log is posecam's process-wide slog logger. Records go to stdout
// and to any extra sinks given to Init, such as the dashboard log stream.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel maps "debug", "warn" and "error" to their slog levels.
// Anything else is info.
func ParseLevel(level string) slog.Level {
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

// Init sets up the global logger once and installs it as slog's default.
// Each sink receives one Write per record. GO_ENV=production switches
// from text to JSON records.
func Init(level string, sinks ...io.Writer) {
	once.Do(func() {
		out := io.MultiWriter(append([]io.Writer{os.Stdout}, sinks...)...)
		opts := &slog.HandlerOptions{Level: ParseLevel(level)}

		var h slog.Handler = slog.NewTextHandler(out, opts)
		if os.Getenv("GO_ENV") == "production" {
			h = slog.NewJSONHandler(out, opts)
		}
		logger = slog.New(h)
		slog.SetDefault(logger)
	})
}

// L returns the global logger, initializing it at info level if needed.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any) { L().Info(msg, args...) }
func Warn(msg string, args ...any) { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

// With returns the global logger with attrs attached.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
