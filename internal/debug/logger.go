// Package debug provides the process logger using log/slog
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelOff disables every log record.
const LevelOff = slog.LevelError + 4

var (
	// logger is the process logger, warnings only until Init is called
	logger = newLogger(os.Stderr, slog.LevelWarn)
	// level is the minimum level currently written
	level = slog.LevelWarn
	// mu protects logger and level
	mu sync.RWMutex
)

func newLogger(w io.Writer, lvl slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// ParseLevel maps debug, info, warn, error and off to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "off", "none":
		return LevelOff, nil
	}
	return slog.LevelWarn, fmt.Errorf("unknown log level %q", s)
}

// Init replaces the process logger. Records below lvl are discarded and
// the rest go to w, or os.Stderr when w is nil.
func Init(lvl slog.Level, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	level = lvl
	logger = newLogger(w, lvl)
}

// Enabled returns whether debug records are written
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return level <= slog.LevelDebug
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Logger returns the underlying slog.Logger instance
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
