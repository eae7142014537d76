package dingosdk

import (
	"errors"
	"fmt"

	"github.com/yuhaijun999/dingo-sdk/apperr"
	"github.com/yuhaijun999/dingo-sdk/rpc"
	"github.com/yuhaijun999/dingo-sdk/topology"
)

// ErrInvalidArgument re-exports apperr.ErrInvalidArgument for callers that
// only import the root package.
var ErrInvalidArgument = apperr.ErrInvalidArgument

// Re-exported so callers can errors.Is against the root package without
// reaching into rpc/topology directly.
var (
	ErrRegionNotFound  = topology.ErrRegionNotFound
	ErrRangeNotCovered = topology.ErrRangeNotCovered
	ErrEpochMismatch   = rpc.ErrEpochMismatch
	ErrDiskAnnNoData   = rpc.ErrDiskAnnNoData
)

// TaskError wraps a task's final latched status with the operation that
// produced it, so callers building alerts or metrics dashboards can group
// failures by op without parsing error strings.
type TaskError struct {
	Op    string // "Upsert", "Search", "BatchQuery"
	Cause error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("dingosdk: %s failed: %v", e.Op, e.Cause)
}

func (e *TaskError) Unwrap() error { return e.Cause }

func wrapTaskError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TaskError{Op: op, Cause: err}
}

// IsRegionNotFound reports whether err (or any error it wraps) indicates the
// topology cache had no region covering the requested key.
func IsRegionNotFound(err error) bool {
	return errors.Is(err, topology.ErrRegionNotFound)
}

// IsRangeNotCovered reports whether err (or any error it wraps) indicates a
// partition's byte range wasn't fully covered by known regions.
func IsRangeNotCovered(err error) bool {
	return errors.Is(err, topology.ErrRangeNotCovered)
}
