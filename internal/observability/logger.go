// File: internal/observability/logger.go
package observability

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/healer/internal/config"
)

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const ansiReset = "\x1b[0m"

// ansi maps the color names accepted in logger.colors to escape sequences.
var ansi = map[string]string{
	"black":   "\x1b[30m",
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// Initialize builds the process logger. Console output goes to consoleWriter;
// logger.log_file adds a rotating JSON copy. Later calls are no-ops until
// ResetForTest.
func Initialize(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevelAt(zap.InfoLevel)
		if cfg.Level != "" {
			if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
				level.SetLevel(zap.InfoLevel)
			}
		}

		core := zapcore.NewCore(getEncoder(cfg), consoleWriter, level)
		if cfg.LogFile != "" {
			fileCore, _ := newRotatingFileCore(cfg.LogFile, cfg, level)
			core = zapcore.NewTee(core, fileCore)
		}

		opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			opts = append(opts, zap.AddCaller())
		}

		name := cfg.ServiceName
		if name == "" {
			name = "healer"
		}
		logger := zap.New(core, opts...).Named(name)
		globalLogger.Store(logger)
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

// ResetForTest clears the process logger so tests can initialize it again.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

// newRotatingFileCore returns a JSON core writing to a lumberjack-managed file,
// along with the file so callers that own it can close it.
func newRotatingFileCore(path string, cfg config.LoggerConfig, level zapcore.LevelEnabler) (zapcore.Core, *lumberjack.Logger) {
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	return zapcore.NewCore(getEncoder(config.LoggerConfig{Format: "json"}), zapcore.AddSync(sink), level), sink
}

func levelColors(c config.ColorConfig) map[zapcore.Level]string {
	return map[zapcore.Level]string{
		zapcore.DebugLevel:  ansi[c.Debug],
		zapcore.InfoLevel:   ansi[c.Info],
		zapcore.WarnLevel:   ansi[c.Warn],
		zapcore.ErrorLevel:  ansi[c.Error],
		zapcore.DPanicLevel: ansi[c.DPanic],
		zapcore.PanicLevel:  ansi[c.Panic],
		zapcore.FatalLevel:  ansi[c.Fatal],
	}
}

// getEncoder returns the console encoder for "console" and JSON otherwise. JSON
// keys (ts, level, logger, msg) are what the healing journal reads back.
func getEncoder(cfg config.LoggerConfig) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if cfg.Format != "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	colors := levelColors(cfg.Colors)
	ec.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		name := strings.ToUpper(l.String())
		if c := colors[l]; c != "" {
			name = c + name + ansiReset
		}
		enc.AppendString(name)
	}
	// "healer.resolver." reads better than "healer.resolver" ahead of the message.
	ec.EncodeName = func(n string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(n + ".")
	}
	return zapcore.NewConsoleEncoder(ec)
}

// GetLogger returns the process logger. Before Initialize it hands out a
// development logger named "fallback".
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	l.Warn("Logger used before initialization; falling back to development logger.")
	return l.Named("fallback")
}

// Sync flushes the process logger.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	err := logger.Sync()
	if err == nil || ignorableSyncError(err) {
		return
	}
	fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
}

// ignorableSyncError reports errors from fsync on terminals and pipes.
func ignorableSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) ||
		errors.Is(err, syscall.ENOTTY) ||
		errors.Is(err, syscall.ENOTSUP) ||
		strings.Contains(err.Error(), "sync /dev/stdout") ||
		strings.Contains(err.Error(), "sync /dev/stderr")
}
