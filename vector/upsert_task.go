package vector

import (
	"context"
	"fmt"

	"github.com/yuhaijun999/dingo-sdk/apperr"
	"github.com/yuhaijun999/dingo-sdk/internal/fanout"
	"github.com/yuhaijun999/dingo-sdk/internal/keycodec"
	"github.com/yuhaijun999/dingo-sdk/internal/task"
	"github.com/yuhaijun999/dingo-sdk/rpc"
	"github.com/yuhaijun999/dingo-sdk/topology"
)

// ErrInvalidArgument re-exports apperr.ErrInvalidArgument for callers that
// only import this package.
var ErrInvalidArgument = apperr.ErrInvalidArgument

// AddRequest is the wire shape of one region's upsert RPC.
type AddRequest struct {
	RegionID int64
	Epoch    topology.Epoch
	IsUpdate bool
	Vectors  []VectorWithId
}

// AddResponse acknowledges an upsert RPC. A real transport also carries a
// per-RPC status; UpsertTask treats a non-nil Controller.Call error as
// failure and a nil error as full acknowledgement of every id in the
// request.
type AddResponse struct{}

// UpsertTask fans a batch of VectorWithId out to their owning regions and
// issues one VectorAdd RPC per region. It is single-use: create one per
// logical upsert call.
type UpsertTask struct {
	task.Base

	cache      topology.Cache
	controller rpc.Controller
	executor   *rpc.Executor
	desc       *IndexDescriptor
	logger     task.Logger

	vectors []VectorWithId
	pending map[int64]struct{} // ids not yet acknowledged
}

// NewUpsertTask constructs an UpsertTask. desc is the index descriptor
// resolved for index_id by the caller before Init. A nil logger discards
// diagnostics.
func NewUpsertTask(cache topology.Cache, controller rpc.Controller, executor *rpc.Executor, desc *IndexDescriptor, vectors []VectorWithId, logger task.Logger) *UpsertTask {
	if logger == nil {
		logger = task.NoopLogger()
	}
	return &UpsertTask{
		cache:      cache,
		controller: controller,
		executor:   executor,
		desc:       desc,
		vectors:    vectors,
		logger:     logger,
	}
}

// Init validates the request synchronously. No RPC is issued if it fails.
func (t *UpsertTask) Init() error {
	if len(t.vectors) == 0 {
		return fmt.Errorf("%w: vectors is empty", ErrInvalidArgument)
	}

	seen := make(map[int64]struct{}, len(t.vectors))
	t.pending = make(map[int64]struct{}, len(t.vectors))
	for _, v := range t.vectors {
		if v.ID <= 0 {
			return fmt.Errorf("%w: id %d is not positive", ErrInvalidArgument, v.ID)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidArgument, v.ID)
		}
		seen[v.ID] = struct{}{}
		t.pending[v.ID] = struct{}{}
	}
	return nil
}

// DoAsync plans the fanout and issues one VectorAdd RPC per region,
// invoking done exactly once when every RPC has completed.
func (t *UpsertTask) DoAsync(ctx context.Context, done func(err error)) {
	byID := make(map[int64]VectorWithId, len(t.vectors))
	for _, v := range t.vectors {
		byID[v.ID] = v
	}

	ids := make([]int64, 0, len(t.vectors))
	for id := range t.pending {
		ids = append(ids, id)
	}

	groups, err := fanout.PlanByID(ctx, t.cache, keycodec.TagVector, ids, t.desc.PartitionForID)
	if err != nil {
		done(err)
		return
	}

	t.Reset(len(groups))
	for _, g := range groups {
		g := g
		req := &AddRequest{
			RegionID: g.Region.RegionID,
			Epoch:    g.Region.Epoch,
			IsUpdate: true,
		}
		for _, id := range g.IDs {
			req.Vectors = append(req.Vectors, byID[id])
		}

		submitErr := t.executor.Submit(ctx, func() {
			t.callAdd(ctx, g.Region, req, done)
		})
		if submitErr != nil {
			t.Lock()
			t.LatchError(submitErr)
			t.Unlock()
			if t.Done() {
				done(t.StatusSnapshot())
			}
		}
	}
}

func (t *UpsertTask) callAdd(ctx context.Context, region topology.Region, req *AddRequest, done func(err error)) {
	var resp AddResponse
	err := t.controller.Call(ctx, region, "VectorAdd", req, &resp)
	t.logger.LogRPC(ctx, "VectorAdd", region.RegionID, err)

	if err != nil {
		t.Lock()
		t.LatchError(&rpc.CallError{RegionID: region.RegionID, Method: "VectorAdd", Err: err})
		t.Unlock()
		t.logger.LogRPCFailure(ctx, "Upsert", region.RegionID, "VectorAdd", err)
	} else {
		t.Lock()
		for _, v := range req.Vectors {
			delete(t.pending, v.ID)
		}
		t.Unlock()
	}

	if t.Done() {
		done(t.StatusSnapshot())
	}
}

// PendingIDs returns the ids that were never acknowledged, letting a caller
// retry just the unfinished subset after a failed or partial upsert.
func (t *UpsertTask) PendingIDs() []int64 {
	t.RLock()
	defer t.RUnlock()

	ids := make([]int64, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	return ids
}
