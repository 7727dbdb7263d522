package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by the logger
type ContextKey string

const (
	// LoggerKey is the context key for the logger instance
	LoggerKey ContextKey = "logger"
)

// New creates a console logger on stderr. Stdout is left to command output.
func New(level string, verbose bool) zerolog.Logger {
	return NewWithWriter(consoleWriter(os.Stderr), level, verbose)
}

// NewWithWriter creates a new structured logger with a custom writer
func NewWithWriter(w io.Writer, level string, verbose bool) zerolog.Logger {
	ctx := zerolog.New(w).Level(ParseLevel(level, verbose)).With().Timestamp()
	if verbose {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// NewWithFile creates a console logger that also appends JSON lines to a
// log file. The returned close function must be called when done.
func NewWithFile(level string, verbose bool, path string) (zerolog.Logger, func() error, error) {
	if path == "" {
		return New(level, verbose), func() error { return nil }, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}

	w := zerolog.MultiLevelWriter(consoleWriter(os.Stderr), file)
	return NewWithWriter(w, level, verbose), file.Close, nil
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
}

// ParseLevel maps a configured level name to a zerolog level.
// Verbose always means debug. Unknown names fall back to info.
func ParseLevel(level string, verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from the context or returns a default logger
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
			return logger
		}
	}
	return New("info", false)
}

// WithFields adds structured fields to a logger
func WithFields(logger zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	ctx := logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}
