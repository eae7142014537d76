package vector

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/yuhaijun999/dingo-sdk/internal/fanout"
	"github.com/yuhaijun999/dingo-sdk/internal/keycodec"
	"github.com/yuhaijun999/dingo-sdk/internal/task"
	"github.com/yuhaijun999/dingo-sdk/rpc"
	"github.com/yuhaijun999/dingo-sdk/topology"
)

// SearchRequest is the wire shape of one region's search RPC.
type SearchRequest struct {
	RegionID      int64
	Epoch         topology.Epoch
	Parameter     WireSearchParameter
	TargetVectors []VectorWithId
}

// SearchResponse carries one candidate list per query index, in the same
// order as the request's TargetVectors.
type SearchResponse struct {
	BatchResults [][]VectorWithDistance
}

// SearchPartTask runs the region-level fanout for one partition: it
// broadcasts the query vectors to every region covering the partition,
// merges per-query candidate lists, and re-issues a brute-force search to
// any region that reports it has no DiskANN data built yet.
//
// State machine: CREATED -> DoAsync -> PRIMARY_INFLIGHT -> PRIMARY_COMPLETE
// -> (status bad or no fallback needed) DONE, or -> FALLBACK_INFLIGHT -> DONE.
type SearchPartTask struct {
	task.Base

	cache      topology.Cache
	controller rpc.Controller
	executor   *rpc.Executor
	logger     task.Logger

	partitionID   int64
	param         WireSearchParameter
	targetVectors []VectorWithId

	regions         []topology.Region
	regionIndexByID map[int64]int

	searchResult map[int][]VectorWithDistance

	// nodataRegions tracks which regions reported ErrDiskAnnNoData, as a
	// bitmap rather than a slice: region ids are small and dense per
	// partition, and DoAsync/checkNoDataRegion only ever need membership
	// and iteration, never positional access.
	nodataRegions  *roaring.Bitmap
	fallbackRemain atomic.Int32
}

// NewSearchPartTask constructs a SearchPartTask for one partition. A nil
// logger discards diagnostics.
func NewSearchPartTask(cache topology.Cache, controller rpc.Controller, executor *rpc.Executor, partitionID int64, param WireSearchParameter, targetVectors []VectorWithId, logger task.Logger) *SearchPartTask {
	if logger == nil {
		logger = task.NoopLogger()
	}
	return &SearchPartTask{
		cache:         cache,
		controller:    controller,
		executor:      executor,
		logger:        logger,
		partitionID:   partitionID,
		param:         param,
		targetVectors: targetVectors,
	}
}

// DoAsync resolves the regions covering this partition and broadcasts the
// query set to each. done receives the merged per-query-index result once
// both the primary round and any fallback round have completed.
func (t *SearchPartTask) DoAsync(ctx context.Context, done func(result map[int][]VectorWithDistance, err error)) {
	plans, err := fanout.PlanByPartition(ctx, t.cache, keycodec.TagVector, []int64{t.partitionID})
	if err != nil {
		done(nil, err)
		return
	}
	t.regions = plans[0].Regions

	t.Lock()
	t.searchResult = make(map[int][]VectorWithDistance)
	t.nodataRegions = roaring.New()
	t.Unlock()

	t.regionIndexByID = make(map[int64]int, len(t.regions))
	for i, r := range t.regions {
		t.regionIndexByID[r.RegionID] = i
	}

	t.Reset(len(t.regions))
	for _, region := range t.regions {
		region := region
		req := &SearchRequest{
			RegionID:      region.RegionID,
			Epoch:         region.Epoch,
			Parameter:     t.param,
			TargetVectors: t.targetVectors,
		}

		submitErr := t.executor.Submit(ctx, func() {
			t.callSearch(ctx, region, req, done)
		})
		if submitErr != nil {
			t.Lock()
			t.LatchError(submitErr)
			t.Unlock()
			if t.Done() {
				t.checkNoDataRegion(ctx, done)
			}
		}
	}
}

func (t *SearchPartTask) callSearch(ctx context.Context, region topology.Region, req *SearchRequest, done func(result map[int][]VectorWithDistance, err error)) {
	var resp SearchResponse
	err := t.controller.Call(ctx, region, "VectorSearch", req, &resp)
	t.logger.LogRPC(ctx, "VectorSearch", region.RegionID, err)

	if err != nil {
		if errors.Is(err, rpc.ErrDiskAnnNoData) {
			t.Lock()
			t.nodataRegions.Add(uint32(region.RegionID))
			t.Unlock()
			t.logger.LogFallback(ctx, region.RegionID)
		} else {
			t.Lock()
			t.LatchError(&rpc.CallError{RegionID: region.RegionID, Method: "VectorSearch", Err: err})
			t.Unlock()
			t.logger.LogRPCFailure(ctx, "Search", region.RegionID, "VectorSearch", err)
		}
	} else {
		t.mergeResponse(ctx, region.RegionID, req, resp)
	}

	if t.Done() {
		t.checkNoDataRegion(ctx, done)
	}
}

func (t *SearchPartTask) mergeResponse(ctx context.Context, regionID int64, req *SearchRequest, resp SearchResponse) {
	if len(resp.BatchResults) != len(req.TargetVectors) {
		t.logger.LogResponseSizeMismatch(ctx, regionID, len(req.TargetVectors), len(resp.BatchResults))
	}

	t.Lock()
	defer t.Unlock()
	for q, candidates := range resp.BatchResults {
		t.searchResult[q] = append(t.searchResult[q], candidates...)
	}
}

func (t *SearchPartTask) checkNoDataRegion(ctx context.Context, done func(result map[int][]VectorWithDistance, err error)) {
	status := t.StatusSnapshot()

	t.RLock()
	nodata := t.nodataRegions.ToArray()
	t.RUnlock()

	if status != nil || len(nodata) == 0 {
		t.finish(done)
		return
	}
	t.searchByBruteForce(ctx, nodata, done)
}

func (t *SearchPartTask) searchByBruteForce(ctx context.Context, nodata []uint32, done func(result map[int][]VectorWithDistance, err error)) {
	fallbackParam := stripDiskAnnSubParam(t.param)

	t.fallbackRemain.Store(int32(len(nodata)))
	for _, regionID32 := range nodata {
		regionID := int64(regionID32)
		region := t.regions[t.regionIndexByID[regionID]]
		req := &SearchRequest{
			RegionID:      region.RegionID,
			Epoch:         region.Epoch,
			Parameter:     fallbackParam,
			TargetVectors: t.targetVectors,
		}

		submitErr := t.executor.SubmitPriority(ctx, func() {
			t.callBruteForce(ctx, region, req, done)
		}, rpc.PriorityLow)
		if submitErr != nil {
			t.Lock()
			t.LatchError(submitErr)
			t.Unlock()
			if t.fallbackRemain.Add(-1) == 0 {
				t.finish(done)
			}
		}
	}
}

func (t *SearchPartTask) callBruteForce(ctx context.Context, region topology.Region, req *SearchRequest, done func(result map[int][]VectorWithDistance, err error)) {
	var resp SearchResponse
	err := t.controller.Call(ctx, region, "VectorSearch", req, &resp)
	t.logger.LogRPC(ctx, "VectorSearch", region.RegionID, err)

	if err != nil {
		t.Lock()
		t.LatchError(&rpc.CallError{RegionID: region.RegionID, Method: "VectorSearch", Err: err})
		t.Unlock()
		t.logger.LogRPCFailure(ctx, "Search", region.RegionID, "VectorSearch", err)
	} else {
		t.mergeResponse(ctx, region.RegionID, req, resp)
	}

	if t.fallbackRemain.Add(-1) == 0 {
		t.finish(done)
	}
}

func (t *SearchPartTask) finish(done func(result map[int][]VectorWithDistance, err error)) {
	status := t.StatusSnapshot()
	if status != nil {
		done(nil, status)
		return
	}
	t.RLock()
	result := make(map[int][]VectorWithDistance, len(t.searchResult))
	for q, v := range t.searchResult {
		result[q] = append([]VectorWithDistance(nil), v...)
	}
	t.RUnlock()
	done(result, nil)
}
