package vector

import (
	"context"
	"fmt"

	"github.com/yuhaijun999/dingo-sdk/apperr"
	"github.com/yuhaijun999/dingo-sdk/codec"
	"github.com/yuhaijun999/dingo-sdk/internal/task"
	"github.com/yuhaijun999/dingo-sdk/internal/topk"
	"github.com/yuhaijun999/dingo-sdk/rpc"
	"github.com/yuhaijun999/dingo-sdk/topology"
)

// SearchResult is one input query's outcome: a copy of its embedding plus
// the merged, sorted candidate list.
type SearchResult struct {
	Query   Vector
	Results []VectorWithDistance
}

// SearchTask is the top-level search entry point. It resolves the index,
// compiles the optional filter expression, fans out one Search-Part-Task
// per partition, and merges per-query results across all partitions,
// applying the top-K truncation once every partition has responded.
type SearchTask struct {
	task.Base

	cache      topology.Cache
	controller rpc.Controller
	executor   *rpc.Executor
	exprCodec  codec.Codec
	logger     task.Logger

	desc          *IndexDescriptor
	param         SearchParam
	targetVectors []VectorWithId

	wireParam WireSearchParameter
	accum     map[int][]VectorWithDistance
}

// NewSearchTask constructs a SearchTask. exprCodec may be nil, in which
// case codec.Default is used. A nil logger discards diagnostics.
func NewSearchTask(cache topology.Cache, controller rpc.Controller, executor *rpc.Executor, desc *IndexDescriptor, param SearchParam, targetVectors []VectorWithId, exprCodec codec.Codec, logger task.Logger) *SearchTask {
	if exprCodec == nil {
		exprCodec = codec.Default
	}
	if logger == nil {
		logger = task.NoopLogger()
	}
	return &SearchTask{
		cache:         cache,
		controller:    controller,
		executor:      executor,
		exprCodec:     exprCodec,
		logger:        logger,
		desc:          desc,
		param:         param,
		targetVectors: targetVectors,
	}
}

// Init validates the request and compiles the wire-level search parameter.
func (t *SearchTask) Init() error {
	if len(t.targetVectors) == 0 {
		return fmt.Errorf("%w: target_vectors is empty", apperr.ErrInvalidArgument)
	}

	wp, err := BuildWireSearchParameter(t.desc, t.param, t.exprCodec)
	if err != nil {
		return err
	}
	t.wireParam = wp
	return nil
}

// DoAsync launches one Search-Part-Task per partition and merges their
// results once all have completed.
func (t *SearchTask) DoAsync(ctx context.Context, done func(results []SearchResult, err error)) {
	partitionIDs := t.desc.PartitionIDs

	t.Lock()
	t.accum = make(map[int][]VectorWithDistance)
	t.Unlock()

	if len(partitionIDs) == 0 {
		done(t.buildResults(), nil)
		return
	}

	t.Reset(len(partitionIDs))
	for _, partitionID := range partitionIDs {
		sub := NewSearchPartTask(t.cache, t.controller, t.executor, partitionID, t.wireParam, t.targetVectors, t.logger)
		sub.DoAsync(ctx, func(result map[int][]VectorWithDistance, err error) {
			t.subTaskCallback(result, err, done)
		})
	}
}

func (t *SearchTask) subTaskCallback(result map[int][]VectorWithDistance, err error, done func(results []SearchResult, err error)) {
	if err != nil {
		t.Lock()
		t.LatchError(err)
		t.Unlock()
	} else {
		t.Lock()
		for q, list := range result {
			t.accum[q] = append(t.accum[q], list...)
		}
		t.Unlock()
	}

	if t.Done() {
		status := t.StatusSnapshot()
		if status != nil {
			done(nil, status)
			return
		}
		done(t.buildResults(), nil)
	}
}

func (t *SearchTask) buildResults() []SearchResult {
	limit := 0
	if !t.param.EnableRangeSearch && t.param.TopK > 0 {
		limit = int(t.param.TopK)
	}

	t.RLock()
	defer t.RUnlock()

	results := make([]SearchResult, len(t.targetVectors))
	for i, v := range t.targetVectors {
		merged := topk.Merge([][]VectorWithDistance{t.accum[i]}, limit)
		results[i] = SearchResult{
			Query: Vector{
				Dimension:    v.Vector.Dimension,
				ValueType:    v.Vector.ValueType,
				FloatValues:  v.Vector.FloatValues,
				BinaryValues: v.Vector.BinaryValues,
			},
			Results: merged,
		}
	}
	return results
}
