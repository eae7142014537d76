package task

import "context"

// Logger receives per-region diagnostics from a Task's call sites. It is
// satisfied structurally by dingosdk.Logger; Task implementations depend
// only on this interface so that internal/task and its callers (vector,
// document) never import the root package.
type Logger interface {
	// LogRPCFailure logs a failed RPC. Every failure is logged; only a
	// task's first failure is latched as its status.
	LogRPCFailure(ctx context.Context, op string, regionID int64, method string, err error)
	// LogFallback logs a region reporting no DiskANN data built yet, queued
	// for brute-force re-issue.
	LogFallback(ctx context.Context, regionID int64)
	// LogResponseSizeMismatch logs a response whose element count didn't
	// match the request's, never escalated to an error.
	LogResponseSizeMismatch(ctx context.Context, regionID int64, want, got int)
	// LogRPC logs one request/response pair at verbose/debug level.
	LogRPC(ctx context.Context, method string, regionID int64, err error)
}

type noopLogger struct{}

func (noopLogger) LogRPCFailure(context.Context, string, int64, string, error) {}
func (noopLogger) LogFallback(context.Context, int64)                          {}
func (noopLogger) LogResponseSizeMismatch(context.Context, int64, int, int)    {}
func (noopLogger) LogRPC(context.Context, string, int64, error)                {}

// NoopLogger returns a Logger that discards every call, used by Task
// constructors when no Logger is supplied.
func NoopLogger() Logger { return noopLogger{} }
