// Package observability builds the process logger and adapts it to the
// stream client's notification and diagnostic sinks.
package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger. It is a no-op until Init runs.
var CLILogger = zap.NewNop()

// Options selects the logger's destination and level.
type Options struct {
	Verbose bool
	// File, when set, receives JSON lines instead of stderr. The TUI uses
	// this so log output never tears the screen.
	File string
}

// NewLogger builds a logger from opts.
func NewLogger(opts Options) (*zap.Logger, error) {
	if opts.File != "" {
		return newFileLogger(opts)
	}

	level := zap.WarnLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core), nil
}

func newFileLogger(opts Options) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{opts.File}
	cfg.ErrorOutputPaths = []string{opts.File}
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", opts.File, err)
	}
	return l, nil
}

// Init builds the logger and installs it as CLILogger.
func Init(opts Options) (*zap.Logger, error) {
	l, err := NewLogger(opts)
	if err != nil {
		return nil, err
	}
	CLILogger = l
	return l, nil
}
