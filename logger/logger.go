// Package logger holds the process-wide structured logger for Unbound.
//
// The logger is a no-op until Initialize is called, so library packages can
// log unconditionally without forcing output on embedders. The CLI and the
// config watcher call Initialize; pure library use never has to.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger instance
	Logger *zap.SugaredLogger
	// JSONOutput tracks whether structured JSON output is enabled
	JSONOutput bool
)

func init() {
	// Safe no-op logger at package load time so callers never nil-check
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger. With jsonOutput the production JSON
// encoder is used; otherwise a human-readable console config.
func Initialize(jsonOutput bool) error {
	JSONOutput = jsonOutput

	var cfg zap.Config
	if jsonOutput {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	zapLogger, err := cfg.Build()
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// SetLevel rebuilds the logger at the given level, keeping the output format.
func SetLevel(level zapcore.Level) error {
	var cfg zap.Config
	if JSONOutput {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := cfg.Build()
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Cleanup flushes any buffered log entries.
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Debugw logs a debug message with structured fields.
func Debugw(msg string, keysAndValues ...interface{}) {
	Logger.Debugw(msg, keysAndValues...)
}

// Infow logs an info message with structured fields.
func Infow(msg string, keysAndValues ...interface{}) {
	Logger.Infow(msg, keysAndValues...)
}

// Warnw logs a warning message with structured fields.
func Warnw(msg string, keysAndValues ...interface{}) {
	Logger.Warnw(msg, keysAndValues...)
}

// Errorw logs an error message with structured fields.
func Errorw(msg string, keysAndValues ...interface{}) {
	Logger.Errorw(msg, keysAndValues...)
}

// Infof logs a formatted info message.
func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

// Warnf logs a formatted warning message.
func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

// Errorf logs a formatted error message.
func Errorf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
}
