package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dbsmedya/gosymbol/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string // String representation of zapcore.Level
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"", "info"}, // empty defaults to info
		{"warn", "warn"},
		{"error", "error"},
		{"unknown", "info"}, // unknown defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level := parseLevel(tt.input)
			if level.String() != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level.String(), tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test-log.json")

	tests := []struct {
		name string
		cfg  *config.LoggingConfig
	}{
		{
			name: "json format info level",
			cfg:  &config.LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
		},
		{
			name: "text format debug level",
			cfg:  &config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
		},
		{
			name: "file output",
			cfg:  &config.LoggingConfig{Level: "warn", Format: "json", Output: logFile},
		},
		{
			name: "stdout output",
			cfg:  &config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if logger == nil {
				t.Fatal("New() returned nil logger without error")
			}
			_ = logger.Sync()
		})
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.WithModule("Sample.dll").Errorw("discarded", "n", 1)
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() on nop logger returned %v", err)
	}
}

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return FromZap(zap.New(core)), logs
}

func TestContextHelpers(t *testing.T) {
	logger, logs := observed()

	logger.WithPayload("Assembly", 4096).Info("staged")
	logger.WithModule("Sample.dll").WithType("Sample.Calculator").Debug("projected")
	logger.WithModule("Sample.dll").With("records", 6).Info("done")

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	staged := entries[0].ContextMap()
	if staged["payload"] != "Assembly" || staged["bytes"] != int64(4096) {
		t.Errorf("unexpected payload context: %v", staged)
	}

	projected := entries[1].ContextMap()
	if projected["module"] != "Sample.dll" || projected["type"] != "Sample.Calculator" {
		t.Errorf("unexpected chained context: %v", projected)
	}

	if entries[2].ContextMap()["records"] != int64(6) {
		t.Errorf("unexpected sugared context: %v", entries[2].ContextMap())
	}
}

func TestWithReturnsNewLogger(t *testing.T) {
	logger, logs := observed()

	moduleLogger := logger.WithModule("Sample.dll")
	if moduleLogger == logger {
		t.Error("WithModule() should return a new logger instance")
	}

	logger.Info("plain")
	if ctx := logs.AllUntimed()[0].ContextMap(); len(ctx) != 0 {
		t.Errorf("parent logger picked up child context: %v", ctx)
	}
}

func TestBuildEncoder(t *testing.T) {
	for _, format := range []string{"json", "text", "unknown"} {
		if buildEncoder(format) == nil {
			t.Errorf("buildEncoder(%q) returned nil", format)
		}
	}
}

func TestBuildWriters(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", ""} {
		ws, file, err := buildWriters(output)
		if err != nil || ws == nil || file != nil {
			t.Errorf("buildWriters(%q) = %v, %v, %v", output, ws, file, err)
		}
	}

	tmpFile := filepath.Join(t.TempDir(), "test-logger-output.log")
	_, file, err := buildWriters(tmpFile)
	if err != nil || file == nil {
		t.Fatalf("buildWriters(file) = %v, %v", file, err)
	}
	_ = file.Close()
}

func TestNewUnwritableLogFile(t *testing.T) {
	cfg := &config.LoggingConfig{Level: "info", Format: "json", Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")}
	logger, err := New(cfg)
	if err == nil {
		t.Fatal("New() with unwritable log file should fail")
	}
	if logger != nil {
		t.Error("New() should not return a logger on error")
	}
	if !strings.Contains(err.Error(), "failed to open log file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoggingOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logger-test.json")

	cfg := &config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: logPath,
	}

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	// Log some messages
	logger.Info("test info message")
	logger.Debug("filtered debug message")
	logger.WithModule("Sample.dll").Warn("message with module context")

	_ = logger.Sync()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	out := string(content)
	for _, want := range []string{"test info message", "message with module context", `"module":"Sample.dll"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "filtered debug message") {
		t.Error("debug message should be filtered at info level")
	}
}

func TestCloseReleasesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "close.json")
	logger, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: logPath})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	child := logger.WithModule("Sample.dll")
	child.Info("before close")
	if err := child.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := logger.out.file.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("log file still open after Close(), write error = %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "before close") {
		t.Errorf("entry logged before Close() missing:\n%s", content)
	}
}

func TestCloseWithoutFile(t *testing.T) {
	if err := NewNop().Close(); err != nil {
		t.Errorf("Close() on nop logger returned %v", err)
	}
}
