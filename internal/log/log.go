// Package log provides the daemon's leveled logging, backed by log/slog.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

type (
	// Level is the log level of a message.
	Level = slog.Level

	// Handler receives every message whose level is enabled. It can be
	// replaced to redirect logs, e.g. to the systemd journal.
	Handler = func(ctx context.Context, level Level, msg string)
)

const (
	// DebugLevel is used for very verbose request tracing.
	DebugLevel = slog.LevelDebug
	// InfoLevel is used for general operational messages.
	InfoLevel = slog.LevelInfo
	// WarnLevel is used for non-critical conditions that deserve eyes.
	WarnLevel = slog.LevelWarn
	// ErrorLevel is used for errors that should definitely be noted.
	ErrorLevel = slog.LevelError
)

var (
	mu      sync.RWMutex
	level   = WarnLevel
	output  io.Writer = os.Stderr
	handler Handler
)

// GetLevel returns the current log level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetLevel sets the minimum level of messages that get logged and returns the
// previous one.
func SetLevel(l Level) (oldLevel Level) {
	mu.Lock()
	defer mu.Unlock()
	oldLevel = level
	level = l
	return oldLevel
}

// IsLevelEnabled checks if messages at the given level would be logged.
func IsLevelEnabled(l Level) bool {
	return l >= GetLevel()
}

// SetOutput sets the writer messages are printed to when no custom handler is
// installed.
func SetOutput(out io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = out
}

// SetHandler redirects all messages to handler. Passing nil restores the
// default output writer.
func SetHandler(h Handler) {
	mu.Lock()
	defer mu.Unlock()
	handler = h
}

func logf(ctx context.Context, l Level, format string, args ...interface{}) {
	mu.RLock()
	enabled := l >= level
	h := handler
	out := output
	mu.RUnlock()

	if !enabled {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if h != nil {
		h(ctx, l, msg)
		return
	}
	fmt.Fprintf(out, "%s %s %s\n", time.Now().Format("15:04:05"), l.String(), msg)
}

// Debug outputs messages with the level [DebugLevel] when that is enabled.
func Debug(ctx context.Context, args ...interface{}) {
	logf(ctx, DebugLevel, "%s", fmt.Sprint(args...))
}

// Debugf outputs messages with the level [DebugLevel] when that is enabled.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, DebugLevel, format, args...)
}

// Info outputs messages with the level [InfoLevel] when that is enabled.
func Info(ctx context.Context, args ...interface{}) {
	logf(ctx, InfoLevel, "%s", fmt.Sprint(args...))
}

// Infof outputs messages with the level [InfoLevel] when that is enabled.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, InfoLevel, format, args...)
}

// Warning outputs messages with the level [WarnLevel] when that is enabled.
func Warning(ctx context.Context, args ...interface{}) {
	logf(ctx, WarnLevel, "%s", fmt.Sprint(args...))
}

// Warningf outputs messages with the level [WarnLevel] when that is enabled.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, WarnLevel, format, args...)
}

// Error outputs messages with the level [ErrorLevel] when that is enabled.
func Error(ctx context.Context, args ...interface{}) {
	logf(ctx, ErrorLevel, "%s", fmt.Sprint(args...))
}

// Errorf outputs messages with the level [ErrorLevel] when that is enabled.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, ErrorLevel, format, args...)
}
