// Package logger provides structured logging for gosymbol using zap.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/gosymbol/internal/config"
)

// Logger wraps zap.SugaredLogger with context methods.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
	out  *logFile // shared with derived loggers, nil unless logging to a file
}

// logFile is a log file opened for the "output" setting.
type logFile struct {
	file *os.File
	once sync.Once
	err  error
}

func (f *logFile) close() error {
	f.once.Do(func() { f.err = f.file.Close() })
	return f.err
}

// New creates a Logger from configuration. It fails only when a log file
// cannot be opened.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	sink, file, err := buildWriters(cfg.Output)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(buildEncoder(cfg.Format), sink, parseLevel(cfg.Level))
	l := FromZap(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
	if file != nil {
		l.out = &logFile{file: file}
	}
	return l, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

// FromZap wraps an existing zap logger.
func FromZap(base *zap.Logger) *Logger {
	return &Logger{
		SugaredLogger: base.Sugar(),
		base:          base,
	}
}

// parseLevel maps a configured level name to a zap level. Unknown names
// log at info; config validation rejects them before we get here.
func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil || level == "" {
		return zapcore.InfoLevel
	}
	return l
}

func buildEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.SecondsDurationEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// buildWriters resolves the output setting. Stdout carries reports, so only
// an explicit "stdout" sends logs there; a file path tees into stderr.
func buildWriters(output string) (zapcore.WriteSyncer, *os.File, error) {
	switch output {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil, nil
	case "stderr", "":
		return zapcore.Lock(os.Stderr), nil, nil
	}
	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.NewMultiWriteSyncer(zapcore.AddSync(file), zapcore.Lock(os.Stderr)), file, nil
}

// WithPayload returns a Logger with payload context.
func (l *Logger) WithPayload(name string, size int64) *Logger {
	return l.with("payload", name, "bytes", size)
}

// WithModule returns a Logger with module context.
func (l *Logger) WithModule(name string) *Logger {
	return l.with("module", name)
}

// WithType returns a Logger with type context.
func (l *Logger) WithType(fullName string) *Logger {
	return l.with("type", fullName)
}

func (l *Logger) with(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		base:          l.base,
		out:           l.out,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// Close flushes the logger and releases its log file, if any. Derived
// loggers share the file, so closing any of them closes it for all.
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.out == nil {
		return nil
	}
	return l.out.close()
}
