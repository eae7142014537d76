package vector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuhaijun999/dingo-sdk/internal/keycodec"
	"github.com/yuhaijun999/dingo-sdk/internal/testutil"
	"github.com/yuhaijun999/dingo-sdk/rpc"
	"github.com/yuhaijun999/dingo-sdk/topology"
)

func vwd(dist float32) VectorWithDistance {
	return VectorWithDistance{Distance: dist}
}

func dists(vs []VectorWithDistance) []float32 {
	out := make([]float32, len(vs))
	for i, v := range vs {
		out[i] = v.Distance
	}
	return out
}

func twoRegionOnePartitionCache() *testutil.FakeCache {
	mid := keycodec.EncodePoint(keycodec.TagVector, 0, 1<<32)
	return testutil.NewFakeCache(
		topology.Region{RegionID: 10, StartKey: keycodec.EncodeStart(keycodec.TagVector, 0), EndKey: mid},
		topology.Region{RegionID: 11, StartKey: mid, EndKey: keycodec.EncodeEnd(keycodec.TagVector, 0)},
	)
}

func twoQueryVectors() []VectorWithId {
	return []VectorWithId{
		{ID: 100, Vector: Vector{Dimension: 1, FloatValues: []float32{0}}},
		{ID: 101, Vector: Vector{Dimension: 1, FloatValues: []float32{1}}},
	}
}

func runSearch(t *testing.T, task *SearchTask) ([]SearchResult, error) {
	t.Helper()
	require.NoError(t, task.Init())

	done := make(chan struct {
		results []SearchResult
		err     error
	}, 1)
	task.DoAsync(context.Background(), func(results []SearchResult, err error) {
		done <- struct {
			results []SearchResult
			err     error
		}{results, err}
	})

	select {
	case r := <-done:
		return r.results, r.err
	case <-time.After(time.Second):
		t.Fatal("timeout")
		return nil, nil
	}
}

func TestSearchTask_S3SearchMerge(t *testing.T) {
	cache := twoRegionOnePartitionCache()
	desc := &IndexDescriptor{ID: 1, Kind: IndexKindHnsw, PartitionIDs: []int64{0}}

	controller := &testutil.FakeController{
		Handler: func(region topology.Region, method string, req, resp any) error {
			r := resp.(*SearchResponse)
			switch region.RegionID {
			case 10:
				r.BatchResults = [][]VectorWithDistance{
					{vwd(0.1), vwd(0.4), vwd(0.9)},
					{vwd(0.2), vwd(0.5)},
				}
			case 11:
				r.BatchResults = [][]VectorWithDistance{
					{vwd(0.05), vwd(0.3)},
					{vwd(0.1), vwd(0.7), vwd(0.8)},
				}
			}
			return nil
		},
	}
	executor := rpc.NewExecutor(4)
	defer executor.Close()

	task := NewSearchTask(cache, controller, executor, desc, SearchParam{TopK: 3}, twoQueryVectors(), nil, nil)
	results, err := runSearch(t, task)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, []float32{0.05, 0.1, 0.3}, dists(results[0].Results))
	assert.Equal(t, []float32{0.1, 0.2, 0.5}, dists(results[1].Results))
}

func TestSearchTask_S4RangeSearchKeepsAll(t *testing.T) {
	cache := twoRegionOnePartitionCache()
	desc := &IndexDescriptor{ID: 1, Kind: IndexKindHnsw, PartitionIDs: []int64{0}}

	controller := &testutil.FakeController{
		Handler: func(region topology.Region, method string, req, resp any) error {
			r := resp.(*SearchResponse)
			switch region.RegionID {
			case 10:
				r.BatchResults = [][]VectorWithDistance{{vwd(0.1), vwd(0.4), vwd(0.9)}}
			case 11:
				r.BatchResults = [][]VectorWithDistance{{vwd(0.05), vwd(0.3)}}
			}
			return nil
		},
	}
	executor := rpc.NewExecutor(4)
	defer executor.Close()

	task := NewSearchTask(cache, controller, executor, desc, SearchParam{TopK: 3, EnableRangeSearch: true}, twoQueryVectors()[:1], nil, nil)
	results, err := runSearch(t, task)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []float32{0.05, 0.1, 0.3, 0.4, 0.9}, dists(results[0].Results))
}

func TestSearchTask_S5DiskAnnFallback(t *testing.T) {
	mid1 := keycodec.EncodePoint(keycodec.TagVector, 0, 1<<20)
	mid2 := keycodec.EncodePoint(keycodec.TagVector, 0, 1<<40)
	cache := testutil.NewFakeCache(
		topology.Region{RegionID: 0, StartKey: keycodec.EncodeStart(keycodec.TagVector, 0), EndKey: mid1},
		topology.Region{RegionID: 1, StartKey: mid1, EndKey: mid2},
		topology.Region{RegionID: 2, StartKey: mid2, EndKey: keycodec.EncodeEnd(keycodec.TagVector, 0)},
	)
	desc := &IndexDescriptor{ID: 1, Kind: IndexKindDiskAnn, PartitionIDs: []int64{0}}

	controller := &testutil.FakeController{
		Handler: func(region topology.Region, method string, req, resp any) error {
			sreq := req.(*SearchRequest)
			r := resp.(*SearchResponse)
			switch region.RegionID {
			case 0:
				r.BatchResults = [][]VectorWithDistance{{vwd(0.1)}}
				return nil
			case 1:
				if !sreq.Parameter.UseBruteForce {
					return rpc.ErrDiskAnnNoData
				}
				r.BatchResults = [][]VectorWithDistance{{vwd(0.2)}}
				return nil
			case 2:
				r.BatchResults = [][]VectorWithDistance{{vwd(0.3)}}
				return nil
			}
			return nil
		},
	}
	executor := rpc.NewExecutor(4)
	defer executor.Close()

	targets := []VectorWithId{{ID: 1, Vector: Vector{Dimension: 1, FloatValues: []float32{0}}}}
	logger := &spyLogger{}
	task := NewSearchTask(cache, controller, executor, desc, SearchParam{TopK: 3, Beamwidth: 8}, targets, nil, logger)
	results, err := runSearch(t, task)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, dists(results[0].Results))
	assert.Contains(t, logger.fallbacks, int64(1))
}

func TestSearchTask_S6FirstError(t *testing.T) {
	mid := keycodec.EncodePoint(keycodec.TagVector, 0, 1<<32)
	cache := testutil.NewFakeCache(
		topology.Region{RegionID: 0, StartKey: keycodec.EncodeStart(keycodec.TagVector, 0), EndKey: mid},
		topology.Region{RegionID: 1, StartKey: mid, EndKey: keycodec.EncodeEnd(keycodec.TagVector, 0)},
	)
	desc := &IndexDescriptor{ID: 1, Kind: IndexKindHnsw, PartitionIDs: []int64{0}}

	e1 := errors.New("E1 network error")
	e2 := errors.New("E2 server error")

	controller := &testutil.FakeController{
		Handler: func(region topology.Region, method string, req, resp any) error {
			switch region.RegionID {
			case 0:
				return e1
			case 1:
				return e2
			}
			return nil
		},
	}
	// Single worker: regions are scanned and submitted in key order (0, then 1),
	// so a one-worker executor processes them in that same arrival order,
	// matching the scenario's documented arrival order.
	executor := rpc.NewExecutor(1)
	defer executor.Close()

	targets := []VectorWithId{{ID: 1, Vector: Vector{Dimension: 1, FloatValues: []float32{0}}}}
	task := NewSearchTask(cache, controller, executor, desc, SearchParam{TopK: 3}, targets, nil, nil)
	results, err := runSearch(t, task)

	require.Error(t, err)
	assert.ErrorIs(t, err, e1)
	assert.Nil(t, results)
}
