// Package rpc defines the transport-facing contract that fanout tasks call
// into: one blocking, per-region RPC. Fanout tasks issue calls from their
// own goroutines (see the executor in this package), so Controller itself
// stays synchronous, the way a single gRPC/brpc unary call is synchronous;
// concurrency comes from how many goroutines call it at once.
package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuhaijun999/dingo-sdk/topology"
)

// Sentinel errors a Controller may return. Callers use errors.Is against
// these, never string matching.
var (
	// ErrRegionNotFound mirrors topology.ErrRegionNotFound but is returned
	// by the controller when a region disappears between planning and
	// dispatch (e.g. a concurrent split).
	ErrRegionNotFound = errors.New("rpc: region not found")

	// ErrEpochMismatch is returned when the server rejects a request
	// because the caller's region.Epoch is stale. The controller is
	// responsible for refreshing the topology cache and retrying once;
	// it is invisible to callers on eventual success.
	ErrEpochMismatch = errors.New("rpc: epoch mismatch")

	// ErrDiskAnnNoData signals that the target region has no DiskANN index
	// built yet. It is not a failure: search tasks route it to a
	// brute-force fallback instead of latching it as the task status.
	ErrDiskAnnNoData = errors.New("rpc: diskann index has no data")
)

// CallError wraps a transport or server-side failure with the region and
// method that produced it, so logs and latched task status carry enough
// context to act on without re-deriving it.
type CallError struct {
	RegionID int64
	Method   string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc: %s to region %d: %v", e.Method, e.RegionID, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Controller issues one RPC to the region owning the call, using the
// region's current epoch for staleness detection. req and resp are
// method-specific message pairs (e.g. *vector.AddRequest/*vector.AddResponse);
// Call is responsible for serialization, transport, retry of transport-level
// failures, and epoch-mismatch refresh-and-retry. It returns a non-nil error
// only for terminal outcomes the caller must react to.
type Controller interface {
	Call(ctx context.Context, region topology.Region, method string, req, resp any) error
}
