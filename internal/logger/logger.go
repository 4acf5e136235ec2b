// Package logger rebuilds the teacher's component-tagged logging call
// shapes (logger.DebugC, logger.WarnCF, logger.ErrorCF, as referenced
// throughout pkg/api/server.go and pkg/api/ws.go) over the standard
// library's log/slog, since the teacher's own pkg/logger package is
// referenced but absent from this retrieval pack and no third-party
// structured-logging library appears anywhere in the corpus.
package logger

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps an *slog.Logger with component-tagged convenience methods.
type Logger struct {
	base *slog.Logger
}

// New returns a Logger writing JSON lines to stdout at the given level.
func New(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return &Logger{base: slog.New(handler)}
}

// Fields is a convenience alias for structured log attributes.
type Fields map[string]any

func (l *Logger) log(level slog.Level, component, msg string, fields Fields) {
	args := make([]any, 0, 2+2*len(fields))
	args = append(args, "component", component)
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.base.Log(context.Background(), level, msg, args...)
}

// DebugC logs at debug level, tagged with component.
func (l *Logger) DebugC(component, msg string) { l.log(slog.LevelDebug, component, msg, nil) }

// InfoC logs at info level, tagged with component.
func (l *Logger) InfoC(component, msg string) { l.log(slog.LevelInfo, component, msg, nil) }

// WarnC logs at warn level, tagged with component.
func (l *Logger) WarnC(component, msg string) { l.log(slog.LevelWarn, component, msg, nil) }

// ErrorC logs at error level, tagged with component.
func (l *Logger) ErrorC(component, msg string) { l.log(slog.LevelError, component, msg, nil) }

// DebugCF logs at debug level with component tag and extra fields.
func (l *Logger) DebugCF(component, msg string, fields Fields) {
	l.log(slog.LevelDebug, component, msg, fields)
}

// InfoCF logs at info level with component tag and extra fields.
func (l *Logger) InfoCF(component, msg string, fields Fields) {
	l.log(slog.LevelInfo, component, msg, fields)
}

// WarnCF logs at warn level with component tag and extra fields.
func (l *Logger) WarnCF(component, msg string, fields Fields) {
	l.log(slog.LevelWarn, component, msg, fields)
}

// ErrorCF logs at error level with component tag and extra fields.
func (l *Logger) ErrorCF(component, msg string, fields Fields) {
	l.log(slog.LevelError, component, msg, fields)
}
