// Package logger provides structured JSON logging with trace correlation.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents a minimum logging level.
type Level slog.Level

// Supported logging levels.
const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

// TraceIDFn extracts a trace id from the context for log correlation.
type TraceIDFn func(ctx context.Context) string

// Logger emits structured log events for the service.
type Logger struct {
	handler   slog.Handler
	traceIDFn TraceIDFn
}

// New constructs a Logger writing JSON events to w at or above minLevel.
// Every event carries the service name; if traceIDFn is non-nil the
// current trace id is attached as well.
func New(w io.Writer, minLevel Level, service string, traceIDFn TraceIDFn) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.Level(minLevel)})
	return &Logger{
		handler:   h.WithAttrs([]slog.Attr{slog.String("service", service)}),
		traceIDFn: traceIDFn,
	}
}

// RotatingWriter returns a size-rotated file sink suitable for passing
// to New, typically combined with os.Stdout via io.MultiWriter.
func RotatingWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	}
}

// MultiWriter combines stdout with a rotating file sink when path is
// non-empty.
func MultiWriter(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, RotatingWriter(path))
}

// Debug logs at debug level.
func (log *Logger) Debug(ctx context.Context, msg string, args ...any) {
	log.write(ctx, slog.LevelDebug, msg, args)
}

// Info logs at info level.
func (log *Logger) Info(ctx context.Context, msg string, args ...any) {
	log.write(ctx, slog.LevelInfo, msg, args)
}

// Warn logs at warn level.
func (log *Logger) Warn(ctx context.Context, msg string, args ...any) {
	log.write(ctx, slog.LevelWarn, msg, args)
}

// Error logs at error level.
func (log *Logger) Error(ctx context.Context, msg string, args ...any) {
	log.write(ctx, slog.LevelError, msg, args)
}

const zeroTraceID = "00000000000000000000000000000000"

func (log *Logger) write(ctx context.Context, level slog.Level, msg string, args []any) {
	if !log.handler.Enabled(ctx, level) {
		return
	}
	if log.traceIDFn != nil {
		if id := log.traceIDFn(ctx); id != "" && id != zeroTraceID {
			args = append(args, "trace_id", id)
		}
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.Add(args...)
	_ = log.handler.Handle(ctx, r)
}
