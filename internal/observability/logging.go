// Package observability carries per-invocation log context (build ID,
// stage, topic) through context.Context so every pipeline log line can be
// correlated without threading loggers through each call.
package observability

import (
	"context"
	"log/slog"
)

// LogContext holds structured logging context information.
type LogContext struct {
	BuildID string
	Stage   string
	Topic   string
	Trigger string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

func update(ctx context.Context, set func(*LogContext)) context.Context {
	lc := extractLogContext(ctx)
	set(&lc)
	return context.WithValue(ctx, logContextKey, lc)
}

// WithBuildID tags log lines with the build ID.
func WithBuildID(ctx context.Context, buildID string) context.Context {
	return update(ctx, func(lc *LogContext) { lc.BuildID = buildID })
}

// WithStage tags log lines with the pipeline stage (discover, scan, prune,
// delta, execute, aggregate).
func WithStage(ctx context.Context, stage string) context.Context {
	return update(ctx, func(lc *LogContext) { lc.Stage = stage })
}

// WithTopic scopes log lines to a single topic filter.
func WithTopic(ctx context.Context, topic string) context.Context {
	return update(ctx, func(lc *LogContext) { lc.Topic = topic })
}

// WithTrigger records what started the build (cli, startup, change, schedule).
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return update(ctx, func(lc *LogContext) { lc.Trigger = trigger })
}

func extractLogContext(ctx context.Context) LogContext {
	if ctx == nil {
		return LogContext{}
	}
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// Attrs returns the non-empty fields of lc as slog attributes.
func (lc LogContext) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)
	for _, f := range [...]struct{ key, value string }{
		{"build.id", lc.BuildID},
		{"stage", lc.Stage},
		{"topic.filter", lc.Topic},
		{"trigger", lc.Trigger},
	} {
		if f.value != "" {
			attrs = append(attrs, slog.String(f.key, f.value))
		}
	}
	return attrs
}

func logWithContext(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	logger := slog.Default()
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, msg, append(extractLogContext(ctx).Attrs(), attrs...)...)
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logWithContext(ctx, slog.LevelInfo, msg, attrs)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logWithContext(ctx, slog.LevelWarn, msg, attrs)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logWithContext(ctx, slog.LevelError, msg, attrs)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logWithContext(ctx, slog.LevelDebug, msg, attrs)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}
