package rpc

import (
	"context"

	"github.com/yuhaijun999/dingo-sdk/internal/resource"
	"github.com/yuhaijun999/dingo-sdk/topology"
)

// boundedController wraps a Controller with an internal/resource.Controller,
// enforcing the client-wide concurrency and issue-rate limits around every
// per-region call. Fanout tasks are unaware of it; they still see a plain
// Controller.
type boundedController struct {
	inner Controller
	res   *resource.Controller
}

// NewBoundedController wraps inner so every Call first waits for an issue
// slot (rate limiting) and a concurrency slot (bounding in-flight RPCs)
// from res. A nil res makes this a passthrough.
func NewBoundedController(inner Controller, res *resource.Controller) Controller {
	if res == nil {
		return inner
	}
	return &boundedController{inner: inner, res: res}
}

func (b *boundedController) Call(ctx context.Context, region topology.Region, method string, req, resp any) error {
	if err := b.res.WaitForIssueSlot(ctx); err != nil {
		return err
	}
	if err := b.res.AcquireRPCSlot(ctx); err != nil {
		return err
	}
	defer b.res.ReleaseRPCSlot()

	return b.inner.Call(ctx, region, method, req, resp)
}
