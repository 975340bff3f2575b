// Package logging is the process-wide logger. It wraps a zap SugaredLogger
// behind printf-style helpers so call sites stay short.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the global logger.
type Options struct {
	Level string    // DEBUG, INFO, WARN, ERROR (case-insensitive)
	JSON  bool      // JSON encoder instead of console
	Out   io.Writer // defaults to os.Stderr
}

var (
	mu   sync.RWMutex
	zlog *zap.SugaredLogger
	lvl  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	Configure(Options{})
}

// Configure replaces the global logger. Safe to call more than once.
func Configure(opts Options) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.CallerKey = ""

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	lvl.SetLevel(ParseLevel(opts.Level))
	core := zapcore.NewCore(enc, zapcore.AddSync(out), lvl)

	mu.Lock()
	zlog = zap.New(core).Sugar()
	mu.Unlock()
}

// SetLevel adjusts the level at runtime without rebuilding the core.
func SetLevel(level string) {
	lvl.SetLevel(ParseLevel(level))
}

// UseTestMode silences everything below ERROR and discards output.
func UseTestMode() {
	Configure(Options{Level: "ERROR", Out: io.Discard})
}

// ParseLevel maps a config string onto a zap level, defaulting to INFO.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger exposes the underlying zap logger for libraries that want one.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return zlog.Desugar()
}

func Debug(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	zlog.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	zlog.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	zlog.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	zlog.Errorf(format, args...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = zlog.Sync()
}
