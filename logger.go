package nvram

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with nvram-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithRegion adds a region field to the logger.
func (l *Logger) WithRegion(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("region", name),
	}
}

// LogRecovery logs the boot-time recovery of a region.
func (l *Logger) LogRecovery(ctx context.Context, region string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recovery failed",
			"region", region,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "recovery completed",
			"region", region,
			"duration", duration,
		)
	}
}

// LogSet logs a write or delete.
func (l *Logger) LogSet(ctx context.Context, region, name string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "set failed",
			"region", region,
			"name", name,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "set completed",
			"region", region,
			"name", name,
			"size", size,
		)
	}
}

// LogBackup logs a backup or restore of all regions under tag.
func (l *Logger) LogBackup(ctx context.Context, op, tag string, regions int, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"tag", tag,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, op+" completed",
			"tag", tag,
			"regions", regions,
		)
	}
}
