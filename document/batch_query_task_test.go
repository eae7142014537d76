package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuhaijun999/dingo-sdk/internal/keycodec"
	"github.com/yuhaijun999/dingo-sdk/internal/testutil"
	"github.com/yuhaijun999/dingo-sdk/rpc"
	"github.com/yuhaijun999/dingo-sdk/topology"
)

// spyLogger records diagnostics for assertion instead of writing them
// anywhere; it satisfies task.Logger structurally.
type spyLogger struct {
	mu         sync.Mutex
	failures   []int64
	mismatches []int64
}

func (s *spyLogger) LogRPCFailure(ctx context.Context, op string, regionID int64, method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, regionID)
}

func (s *spyLogger) LogFallback(ctx context.Context, regionID int64) {}

func (s *spyLogger) LogResponseSizeMismatch(ctx context.Context, regionID int64, want, got int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mismatches = append(s.mismatches, regionID)
}

func (s *spyLogger) LogRPC(ctx context.Context, method string, regionID int64, err error) {}

func docSetup() (*testutil.FakeCache, *IndexDescriptor) {
	cache := testutil.NewFakeCache(
		topology.Region{
			RegionID: 10,
			StartKey: keycodec.EncodeStart(keycodec.TagDocument, 0),
			EndKey:   keycodec.EncodeEnd(keycodec.TagDocument, 0),
		},
		topology.Region{
			RegionID: 20,
			StartKey: keycodec.EncodeStart(keycodec.TagDocument, 1),
			EndKey:   keycodec.EncodeEnd(keycodec.TagDocument, 1),
		},
	)
	desc := &IndexDescriptor{
		ID:           1,
		PartitionIDs: []int64{0, 1},
		PartitionOf: func(id int64) int64 {
			if id <= 2 {
				return 0
			}
			return 1
		},
	}
	return cache, desc
}

func runBatchQuery(t *testing.T, task *BatchQueryTask) ([]DocWithId, error) {
	t.Helper()
	require.NoError(t, task.Init())

	done := make(chan struct {
		result []DocWithId
		err    error
	}, 1)
	task.DoAsync(context.Background(), func(result []DocWithId, err error) {
		done <- struct {
			result []DocWithId
			err    error
		}{result, err}
	})

	select {
	case r := <-done:
		return r.result, r.err
	case <-time.After(time.Second):
		t.Fatal("timeout")
		return nil, nil
	}
}

func TestBatchQueryTask_HappyPathFanoutAndMerge(t *testing.T) {
	cache, desc := docSetup()

	controller := &testutil.FakeController{
		Handler: func(region topology.Region, method string, req, resp any) error {
			assert.Equal(t, "DocumentBatchQuery", method)
			r := req.(*BatchQueryRequest)
			out := resp.(*BatchQueryResponse)
			for _, id := range r.DocumentIDs {
				out.Documents = append(out.Documents, DocWithId{ID: id})
			}
			return nil
		},
	}
	executor := rpc.NewExecutor(4)
	defer executor.Close()

	task := NewBatchQueryTask(cache, controller, executor, desc, QueryParam{DocIDs: []int64{1, 2, 3}}, nil)
	result, err := runBatchQuery(t, task)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, idsOf(result))
}

func TestBatchQueryTask_ResponseSizeMismatchIsNonFatal(t *testing.T) {
	cache, desc := docSetup()

	controller := &testutil.FakeController{
		Handler: func(region topology.Region, method string, req, resp any) error {
			out := resp.(*BatchQueryResponse)
			r := req.(*BatchQueryRequest)
			// Return fewer documents than requested; must not fail the task.
			if len(r.DocumentIDs) > 0 {
				out.Documents = []DocWithId{{ID: r.DocumentIDs[0]}}
			}
			return nil
		},
	}
	executor := rpc.NewExecutor(4)
	defer executor.Close()

	logger := &spyLogger{}
	task := NewBatchQueryTask(cache, controller, executor, desc, QueryParam{DocIDs: []int64{1, 2}}, logger)
	result, err := runBatchQuery(t, task)
	require.NoError(t, err)
	assert.Len(t, result, 1)
	assert.NotEmpty(t, logger.mismatches)
}

func TestBatchQueryTask_DroppedDocumentsWithZeroIDAreExcluded(t *testing.T) {
	cache, desc := docSetup()

	controller := &testutil.FakeController{
		Handler: func(region topology.Region, method string, req, resp any) error {
			out := resp.(*BatchQueryResponse)
			r := req.(*BatchQueryRequest)
			for _, id := range r.DocumentIDs {
				out.Documents = append(out.Documents, DocWithId{ID: 0})
				_ = id
			}
			return nil
		},
	}
	executor := rpc.NewExecutor(4)
	defer executor.Close()

	task := NewBatchQueryTask(cache, controller, executor, desc, QueryParam{DocIDs: []int64{1, 2}}, nil)
	result, err := runBatchQuery(t, task)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestBatchQueryTask_InitRejectsEmptyDuplicateAndNonPositiveIDs(t *testing.T) {
	_, desc := docSetup()
	executor := rpc.NewExecutor(1)
	defer executor.Close()

	empty := NewBatchQueryTask(nil, nil, executor, desc, QueryParam{}, nil)
	require.ErrorIs(t, empty.Init(), ErrInvalidArgument)

	dup := NewBatchQueryTask(nil, nil, executor, desc, QueryParam{DocIDs: []int64{1, 1}}, nil)
	require.ErrorIs(t, dup.Init(), ErrInvalidArgument)

	bad := NewBatchQueryTask(nil, nil, executor, desc, QueryParam{DocIDs: []int64{0}}, nil)
	require.ErrorIs(t, bad.Init(), ErrInvalidArgument)
}

func TestBatchQueryTask_PartialResultsDiscardedOnFailure(t *testing.T) {
	cache, desc := docSetup()
	e1 := errors.New("region 20 down")

	controller := &testutil.FakeController{
		Handler: func(region topology.Region, method string, req, resp any) error {
			if region.RegionID == 20 {
				return e1
			}
			r := req.(*BatchQueryRequest)
			out := resp.(*BatchQueryResponse)
			for _, id := range r.DocumentIDs {
				out.Documents = append(out.Documents, DocWithId{ID: id})
			}
			return nil
		},
	}
	executor := rpc.NewExecutor(4)
	defer executor.Close()

	logger := &spyLogger{}
	task := NewBatchQueryTask(cache, controller, executor, desc, QueryParam{DocIDs: []int64{1, 3}}, logger)
	result, err := runBatchQuery(t, task)

	require.Error(t, err)
	assert.ErrorIs(t, err, e1)
	assert.Nil(t, result)
	assert.Contains(t, logger.failures, int64(20))
}

func idsOf(docs []DocWithId) []int64 {
	out := make([]int64, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
