package document

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

// ErrInvalidArgument re-exports apperr.ErrInvalidArgument.
var ErrInvalidArgument = apperr.ErrInvalidArgument

// QueryParam configures a batch-query request.
type QueryParam struct {
	DocIDs         []int64
	WithScalarData bool
	SelectedKeys   []string // honored only when WithScalarData
}

// BatchQueryRequest is the wire shape of one region's batch-query RPC.
type BatchQueryRequest struct {
	RegionID          int64
	Epoch             topology.Epoch
	DocumentIDs       []int64
	WithoutScalarData bool
	SelectedKeys      []string
}

// BatchQueryResponse is the wire shape of a batch-query RPC's result. The
// server guarantees len(Documents) == len(request.DocumentIDs); a missing
// document is represented by ID == 0 and dropped by the aggregator.
type BatchQueryResponse struct {
	Documents []DocWithId
}

// BatchQueryTask fans a batch of document ids out to their owning regions
// and merges surviving documents. Single-use.
type BatchQueryTask struct {
	task.Base

	cache      topology.Cache
	controller rpc.Controller
	executor   *rpc.Executor
	desc       *IndexDescriptor
	param      QueryParam
	logger     task.Logger

	docIDs map[int64]struct{}
	result []DocWithId
}

// NewBatchQueryTask constructs a BatchQueryTask. A nil logger discards
// diagnostics.
func NewBatchQueryTask(cache topology.Cache, controller rpc.Controller, executor *rpc.Executor, desc *IndexDescriptor, param QueryParam, logger task.Logger) *BatchQueryTask {
	if logger == nil {
		logger = task.NoopLogger()
	}
	return &BatchQueryTask{
		cache:      cache,
		controller: controller,
		executor:   executor,
		desc:       desc,
		param:      param,
		logger:     logger,
	}
}

// Init validates the request synchronously.
func (t *BatchQueryTask) Init() error {
	if len(t.param.DocIDs) == 0 {
		return fmt.Errorf("%w: doc_ids is empty", ErrInvalidArgument)
	}

	t.docIDs = make(map[int64]struct{}, len(t.param.DocIDs))
	for _, id := range t.param.DocIDs {
		if id <= 0 {
			return fmt.Errorf("%w: invalid document id %d", ErrInvalidArgument, id)
		}
		if _, dup := t.docIDs[id]; dup {
			return fmt.Errorf("%w: duplicate document id %d", ErrInvalidArgument, id)
		}
		t.docIDs[id] = struct{}{}
	}
	return nil
}

// DoAsync plans the fanout and issues one BatchQuery RPC per region.
func (t *BatchQueryTask) DoAsync(ctx context.Context, done func(result []DocWithId, err error)) {
	ids := make([]int64, 0, len(t.docIDs))
	for id := range t.docIDs {
		ids = append(ids, id)
	}

	groups, err := fanout.PlanByID(ctx, t.cache, keycodec.TagDocument, ids, t.desc.PartitionForID)
	if err != nil {
		done(nil, err)
		return
	}

	t.Reset(len(groups))
	for _, g := range groups {
		g := g
		req := &BatchQueryRequest{
			RegionID:          g.Region.RegionID,
			Epoch:             g.Region.Epoch,
			DocumentIDs:       g.IDs,
			WithoutScalarData: !t.param.WithScalarData,
		}
		if t.param.WithScalarData {
			req.SelectedKeys = t.param.SelectedKeys
		}

		submitErr := t.executor.Submit(ctx, func() {
			t.callBatchQuery(ctx, g.Region, req, done)
		})
		if submitErr != nil {
			t.Lock()
			t.LatchError(submitErr)
			t.Unlock()
			if t.Done() {
				t.finish(done)
			}
		}
	}
}

func (t *BatchQueryTask) callBatchQuery(ctx context.Context, region topology.Region, req *BatchQueryRequest, done func(result []DocWithId, err error)) {
	var resp BatchQueryResponse
	err := t.controller.Call(ctx, region, "DocumentBatchQuery", req, &resp)
	t.logger.LogRPC(ctx, "DocumentBatchQuery", region.RegionID, err)

	if err != nil {
		t.Lock()
		t.LatchError(&rpc.CallError{RegionID: region.RegionID, Method: "DocumentBatchQuery", Err: err})
		t.Unlock()
		t.logger.LogRPCFailure(ctx, "BatchQuery", region.RegionID, "DocumentBatchQuery", err)
	} else {
		if len(resp.Documents) != len(req.DocumentIDs) {
			t.logger.LogResponseSizeMismatch(ctx, region.RegionID, len(req.DocumentIDs), len(resp.Documents))
		}

		t.Lock()
		for _, doc := range resp.Documents {
			if doc.ID > 0 {
				t.result = append(t.result, doc)
			}
		}
		t.Unlock()
	}

	if t.Done() {
		t.finish(done)
	}
}

func (t *BatchQueryTask) finish(done func(result []DocWithId, err error)) {
	status := t.StatusSnapshot()
	if status != nil {
		done(nil, status)
		return
	}
	t.RLock()
	result := append([]DocWithId(nil), t.result...)
	t.RUnlock()
	done(result, nil)
}
