// Package resource bounds how much concurrent RPC work and in-flight
// request payload a client will push out at once, independent of whatever
// per-RPC timeout/retry policy the rpc.Controller applies.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits shared across every task issued by a client.
type Config struct {
	// InFlightBytesLimit caps the total size of request payloads currently
	// in flight across all tasks. 0 means no hard limit; usage is still
	// counted and reported by InFlightBytes.
	InFlightBytesLimit int64

	// MaxConcurrentRPCs caps how many per-region RPCs may be in flight at
	// once. 0 defaults to 1.
	MaxConcurrentRPCs int64

	// RPCsPerSecond, if set, throttles how fast new RPCs may be issued,
	// smoothing bursts from a single large fanout (e.g. a wide search
	// across hundreds of regions).
	RPCsPerSecond int64
}

// Controller enforces Config's limits for one client. It is safe for
// concurrent use by every task the client creates.
type Controller struct {
	cfg Config

	byteSem   *semaphore.Weighted // nil if no hard limit
	bytesUsed atomic.Int64

	rpcSem *semaphore.Weighted

	issueLimiter *rate.Limiter
}

// NewController builds a Controller from cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentRPCs <= 0 {
		cfg.MaxConcurrentRPCs = 1
	}

	c := &Controller{
		cfg:    cfg,
		rpcSem: semaphore.NewWeighted(cfg.MaxConcurrentRPCs),
	}

	if cfg.InFlightBytesLimit > 0 {
		c.byteSem = semaphore.NewWeighted(cfg.InFlightBytesLimit)
	}

	if cfg.RPCsPerSecond > 0 {
		c.issueLimiter = rate.NewLimiter(rate.Limit(cfg.RPCsPerSecond), int(cfg.RPCsPerSecond))
	}

	return c
}

// AcquireRPCSlot blocks until a concurrent-RPC slot is free or ctx is done.
// The bounded rpc.Controller calls this before issuing each RPC and calls
// ReleaseRPCSlot as soon as the RPC returns.
func (c *Controller) AcquireRPCSlot(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rpcSem.Acquire(ctx, 1)
}

// ReleaseRPCSlot releases a slot acquired by AcquireRPCSlot.
func (c *Controller) ReleaseRPCSlot() {
	if c == nil {
		return
	}
	c.rpcSem.Release(1)
}

// TryAcquireRPCSlot attempts to reserve a slot without blocking.
func (c *Controller) TryAcquireRPCSlot() bool {
	if c == nil {
		return true
	}
	return c.rpcSem.TryAcquire(1)
}

// WaitForIssueSlot smooths RPC issuance to RPCsPerSecond, if configured.
func (c *Controller) WaitForIssueSlot(ctx context.Context) error {
	if c == nil || c.issueLimiter == nil {
		return nil
	}
	return c.issueLimiter.Wait(ctx)
}

// AcquireBytes reserves payloadBytes of the in-flight-payload budget,
// blocking if the hard limit would be exceeded.
func (c *Controller) AcquireBytes(ctx context.Context, payloadBytes int64) error {
	if c == nil || payloadBytes <= 0 {
		return nil
	}
	if c.byteSem != nil {
		if err := c.byteSem.Acquire(ctx, payloadBytes); err != nil {
			return err
		}
	}
	c.bytesUsed.Add(payloadBytes)
	return nil
}

// ReleaseBytes releases a reservation made by AcquireBytes.
func (c *Controller) ReleaseBytes(payloadBytes int64) {
	if c == nil || payloadBytes <= 0 {
		return
	}
	if c.byteSem != nil {
		c.byteSem.Release(payloadBytes)
	}
	c.bytesUsed.Add(-payloadBytes)
}

// InFlightBytes reports the currently reserved payload budget.
func (c *Controller) InFlightBytes() int64 {
	if c == nil {
		return 0
	}
	return c.bytesUsed.Load()
}
