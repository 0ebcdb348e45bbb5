// Package debuglog backs the component-tagged debug hooks used by every
// package with a zap logger. Console output is always on; a rotated JSON
// file is added when a log file is configured.
package debuglog

import (
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the sinks of a DebugLogger.
type Config struct {
	Verbose bool      // per-frame messages are dropped unless set
	LogFile string    // optional JSON log file, rotated by size
	RunID   string    // attached to every entry when set
	Console io.Writer // defaults to stdout
}

// DebugLogger provides unified debug message handling for console and file.
type DebugLogger struct {
	logger  *zap.Logger
	file    *lumberjack.Logger
	verbose bool
}

// NewDebugLogger creates a unified debug logger
func NewDebugLogger(cfg Config) *DebugLogger {
	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}

	level := zapcore.InfoLevel
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig()), zapcore.AddSync(console), level),
	}

	dl := &DebugLogger{verbose: cfg.Verbose}
	if cfg.LogFile != "" {
		dl.file = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(dl.file), level))
	}

	dl.logger = zap.New(zapcore.NewTee(cores...))
	if cfg.RunID != "" {
		dl.logger = dl.logger.With(zap.String("run", cfg.RunID))
	}
	return dl
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05.000"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// DebugMsg logs message for component. Messages starting with "WARNING" or
// "ERROR" are raised to that level.
func (dl *DebugLogger) DebugMsg(component, message string) {
	field := zap.String("component", component)
	switch {
	case strings.HasPrefix(message, "ERROR"):
		dl.logger.Error(message, field)
	case strings.HasPrefix(message, "WARNING"):
		dl.logger.Warn(message, field)
	default:
		dl.logger.Info(message, field)
	}
}

// DebugMsgVerbose logs at debug level and only when verbose output is on.
func (dl *DebugLogger) DebugMsgVerbose(component, message string) {
	if !dl.verbose {
		return
	}
	dl.logger.Debug(message, zap.String("component", component))
}

// Close flushes the logger and closes the log file. Sync errors from a
// terminal stdout are ignored.
func (dl *DebugLogger) Close() error {
	var err error
	if syncErr := dl.logger.Sync(); syncErr != nil && !isIgnorableSyncError(syncErr) {
		err = multierr.Append(err, syncErr)
	}
	if dl.file != nil {
		err = multierr.Append(err, dl.file.Close())
	}
	return err
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}
