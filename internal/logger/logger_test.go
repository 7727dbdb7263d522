package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New("info", false)
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    zerolog.Level
	}{
		{"debug", false, zerolog.DebugLevel},
		{"INFO", false, zerolog.InfoLevel},
		{"warning", false, zerolog.WarnLevel},
		{"warn", false, zerolog.WarnLevel},
		{"error", false, zerolog.ErrorLevel},
		{"", false, zerolog.InfoLevel},
		{"bogus", false, zerolog.InfoLevel},
		{"error", true, zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := ParseLevel(tt.level, tt.verbose); got != tt.want {
				t.Errorf("ParseLevel(%q, %v) = %s, want %s", tt.level, tt.verbose, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "info", false)

	log.Info().Msg("test message")
	log.Debug().Msg("hidden message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
	if strings.Contains(output, "hidden message") {
		t.Errorf("Debug output leaked at info level: %s", output)
	}
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agingconv.log")

	log, closeFn, err := NewWithFile("info", false, path)
	if err != nil {
		t.Fatalf("NewWithFile() error = %v", err)
	}

	log.Info().Str("file", "aging.csv").Msg("converted")
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"converted"`) {
		t.Errorf("log file lacks the JSON entry: %s", data)
	}
}

func TestNewWithFile_NoPath(t *testing.T) {
	_, closeFn, err := NewWithFile("info", false, "")
	if err != nil {
		t.Fatalf("NewWithFile() error = %v", err)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close error = %v", err)
	}
}

func TestWithContext(t *testing.T) {
	log := New("info", false)
	ctx := context.Background()

	ctxWithLogger := WithContext(ctx, log)

	if ctxWithLogger.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf, "info", false)
	ctx := WithContext(context.Background(), testLog)

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "info", false)

	logWithFields := WithFields(log, map[string]interface{}{
		"run_id":  "123",
		"profile": "auto",
	})
	logWithFields.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "run_id") || !strings.Contains(output, "123") {
		t.Errorf("Expected output to contain run_id field, got: %s", output)
	}
	if !strings.Contains(output, "profile") || !strings.Contains(output, "auto") {
		t.Errorf("Expected output to contain profile field, got: %s", output)
	}
}
