package dingosdk

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with dingosdk-specific helper methods, keeping
// field names consistent across the fanout/aggregation call sites.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger backed by handler. A nil handler falls back to
// a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that emits JSON records at level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger that emits human-readable text at level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)}))}
}

// LogRPCFailure logs a failed RPC. Every failure is logged; only a task's
// first failure is latched as its status.
func (l *Logger) LogRPCFailure(ctx context.Context, op string, regionID int64, method string, err error) {
	l.WarnContext(ctx, "rpc failed",
		"op", op, "region_id", regionID, "method", method, "error", err)
}

// LogFallback logs a region reporting no DiskANN data built yet, queued for
// brute-force re-issue.
func (l *Logger) LogFallback(ctx context.Context, regionID int64) {
	l.InfoContext(ctx, "region has no diskann data, queued for brute-force fallback",
		"region_id", regionID)
}

// LogResponseSizeMismatch logs a batch-query or search response whose
// element count didn't match the request's. Never escalated to an error.
func (l *Logger) LogResponseSizeMismatch(ctx context.Context, regionID int64, want, got int) {
	l.WarnContext(ctx, "response size mismatch",
		"region_id", regionID, "want", want, "got", got)
}

// LogRPC logs one request/response pair at debug level, for verbose tracing.
func (l *Logger) LogRPC(ctx context.Context, method string, regionID int64, err error) {
	l.DebugContext(ctx, "rpc", "method", method, "region_id", regionID, "error", err)
}
