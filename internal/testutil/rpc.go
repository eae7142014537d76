package testutil

import (
	"context"
	"sync"

	"github.com/yuhaijun999/dingo-sdk/topology"
)

// CallRecord captures one Call invocation for post-hoc assertions.
type CallRecord struct {
	RegionID int64
	Method   string
	Req      any
}

// FakeController is a scriptable rpc.Controller. Handler is invoked
// synchronously (as a real Controller.Call would be) and is responsible for
// populating resp; tests typically type-assert req/resp to the concrete
// request/response types under test.
type FakeController struct {
	Handler func(region topology.Region, method string, req, resp any) error

	mu    sync.Mutex
	calls []CallRecord
}

func (f *FakeController) Call(ctx context.Context, region topology.Region, method string, req, resp any) error {
	f.mu.Lock()
	f.calls = append(f.calls, CallRecord{RegionID: region.RegionID, Method: method, Req: req})
	f.mu.Unlock()

	return f.Handler(region, method, req, resp)
}

// Calls returns every recorded call, in arrival order.
func (f *FakeController) Calls() []CallRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CallRecord(nil), f.calls...)
}
