// Package logging builds the process-wide slog loggers.
package logging

import (
	"io"
	"log/slog"
	"os"
)

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger creates a structured text logger on stdout.
// Supported levels: "debug", "info", "warn", "error".
func SetupLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

// SetupLoggerWithFile creates a logger that writes JSON to a file, or
// discards output when no file is configured (keeps the REPL clean).
// The returned cleanup function closes the file and must be called.
func SetupLoggerWithFile(level, logFile string) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	if logFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}
	return slog.New(slog.NewJSONHandler(file, opts)), func() { file.Close() }
}
