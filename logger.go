package ngramlm

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is the slog.Logger that models and builders report through. Its
// helpers keep attribute names stable across load and build events.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		return NewTextLogger(slog.LevelInfo)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger logs JSON lines at level and above to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger logs key=value lines at level and above to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

// LogLoad logs the outcome of loading a model.
func (l *Logger) LogLoad(ctx context.Context, path string, info LoadInfo, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"path", path,
			"load_method", info.Method.String(),
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "model loaded",
		"path", path,
		"model_type", info.ModelType.String(),
		"order", info.Order,
		"load_method", info.Method.String(),
		"bytes", info.Bytes,
		"duration", info.Duration,
	)
}

// LogProgress logs the progress of a long-running stage.
func (l *Logger) LogProgress(ctx context.Context, stage string, done, total int64) {
	pct := 100.0
	if total > 0 {
		pct = float64(done) * 100 / float64(total)
	}
	l.InfoContext(ctx, "progress",
		"stage", stage,
		"done", done,
		"total", total,
		"percent", pct,
	)
}

// LogPolicy logs a repaired policy violation. Silent actions log at debug.
func (l *Logger) LogPolicy(ctx context.Context, action WarningAction, msg string, args ...any) {
	if action == Complain {
		l.WarnContext(ctx, msg, args...)
		return
	}
	l.DebugContext(ctx, msg, args...)
}

// LogBuild logs the outcome of writing a model.
func (l *Logger) LogBuild(ctx context.Context, path string, counts []uint64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "model written",
		"path", path,
		"counts", counts,
		"duration", elapsed,
	)
}
