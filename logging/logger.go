// Package logging wraps zap with the process-wide logging setup: a colored
// console in development, JSON everywhere else, and a rotating log file.
package logging

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogFile is used when Config.FilePath is empty.
const DefaultLogFile = "anomalyfilter.log"

// Config configures NewLogger.
type Config struct {
	// DevMode selects the colored console encoder.
	DevMode bool

	// Level is the minimum enabled level.
	Level zapcore.Level

	// FilePath is the rotating log file.
	FilePath string

	// File controls rotation of FilePath.
	File FileWriterConfig

	// Console receives console output. Defaults to os.Stdout.
	Console zapcore.WriteSyncer
}

// Logger wraps zap.Logger with the process logging setup. Pipeline
// components take the underlying *zap.Logger from Zap().
//
// Example:
//
//	logger, err := logging.NewLogger(logging.Config{DevMode: true, Level: logging.DebugLevel})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("pipeline built", zap.Int("nodes", 6))
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger

	level    zap.AtomicLevel
	devMode  bool
	filePath string
}

// NewLogger builds a Logger that writes to the console and to a rotating
// file. The file's directory is created if needed.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultLogFile
	}
	if dir := filepath.Dir(cfg.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	if cfg.File == (FileWriterConfig{}) {
		cfg.File = DefaultFileWriterConfig()
	}
	console := cfg.Console
	if console == nil {
		console = zapcore.Lock(os.Stdout)
	}

	level := zap.NewAtomicLevelAt(cfg.Level)
	core := NewMultiCore(level, console, NewFileWriter(cfg.FilePath, cfg.File), cfg.DevMode)

	zapLogger := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	return &Logger{
		zap:      zapLogger,
		sugar:    zapLogger.Sugar(),
		level:    level,
		devMode:  cfg.DevMode,
		filePath: cfg.FilePath,
	}, nil
}

// Zap returns the underlying logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sugar returns the printf-style logger.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// Named returns a child logger whose entries carry name.
func (l *Logger) Named(name string) *Logger {
	child := *l
	child.zap = l.zap.Named(name)
	child.sugar = child.zap.Sugar()
	return &child
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := *l
	child.zap = l.zap.With(fields...)
	child.sugar = child.zap.Sugar()
	return &child
}

// SetLevel changes the minimum level of this logger and every child.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// IsDevelopment reports whether the console uses the development encoder.
func (l *Logger) IsDevelopment() bool {
	return l.devMode
}

// LogFilePath returns the path of the log file.
func (l *Logger) LogFilePath() string {
	return l.filePath
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field) { l.zap.Fatal(msg, fields...) }

func (l *Logger) Infof(template string, args ...interface{})  { l.sugar.Infof(template, args...) }
func (l *Logger) Warnf(template string, args ...interface{})  { l.sugar.Warnf(template, args...) }
func (l *Logger) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }

// Sync flushes buffered entries. Errors from syncing a terminal are
// ignored.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	err := l.zap.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}
