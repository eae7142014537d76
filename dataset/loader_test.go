package dataset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuhaijun999/dingo-sdk/vector"
)

// fakeDataset yields fixed-size batches from a preloaded slice of ids.
type fakeDataset struct {
	dim       int
	remaining []int64
	failAfter int // if > 0, NextBatch fails once this many ids have been served
	served    int
	failErr   error
}

func (f *fakeDataset) Init(ctx context.Context) error { return nil }
func (f *fakeDataset) Dimension() int                 { return f.dim }
func (f *fakeDataset) TrainCount() int                { return len(f.remaining) + f.served }
func (f *fakeDataset) TestCount() int                 { return 0 }

func (f *fakeDataset) NextBatch(ctx context.Context, n int) ([]vector.VectorWithId, bool, error) {
	if f.failAfter > 0 && f.served >= f.failAfter {
		return nil, false, f.failErr
	}
	if len(f.remaining) == 0 {
		return nil, false, nil
	}
	if n > len(f.remaining) {
		n = len(f.remaining)
	}
	ids := f.remaining[:n]
	f.remaining = f.remaining[n:]
	f.served += n

	batch := make([]vector.VectorWithId, len(ids))
	for i, id := range ids {
		batch[i] = vector.VectorWithId{ID: id}
	}
	return batch, len(f.remaining) > 0, nil
}

func (f *fakeDataset) TestData(ctx context.Context) ([]TestEntry, error) { return nil, nil }

func TestLoader_ProducesAllBatchesInOrder(t *testing.T) {
	ds := &fakeDataset{dim: 4, remaining: []int64{1, 2, 3, 4, 5}}
	loader := NewLoader(ds, 2)
	loader.Run(context.Background())

	var ids []int64
	for batch := range loader.Batches() {
		for _, v := range batch.Vectors {
			ids = append(ids, v.ID)
		}
	}

	require.NoError(t, loader.Err())
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)
}

func TestLoader_QueueDepthBoundsProducer(t *testing.T) {
	ds := &fakeDataset{dim: 4, remaining: []int64{1, 2, 3, 4, 5, 6}}
	loader := NewLoader(ds, 1, WithQueueDepth(2))
	loader.Run(context.Background())

	select {
	case batch, ok := <-loader.Batches():
		require.True(t, ok)
		assert.Len(t, batch.Vectors, 1)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for first batch")
	}
}

func TestLoader_PropagatesDatasetError(t *testing.T) {
	failErr := errors.New("dataset read failed")
	ds := &fakeDataset{dim: 4, remaining: []int64{1, 2, 3, 4}, failAfter: 2, failErr: failErr}
	loader := NewLoader(ds, 2)
	loader.Run(context.Background())

	for range loader.Batches() {
	}
	require.ErrorIs(t, loader.Err(), failErr)
}

func TestLoader_StopsOnContextCancellation(t *testing.T) {
	ds := &fakeDataset{dim: 4, remaining: []int64{1, 2, 3}}
	ctx, cancel := context.WithCancel(context.Background())
	loader := NewLoader(ds, 1, WithQueueDepth(1))

	// Cancel immediately so the producer either never sends or observes
	// ctx.Done on its blocking send.
	cancel()
	loader.Run(ctx)

	for range loader.Batches() {
	}
	// Either it raced ahead and finished cleanly, or it observed
	// cancellation; both are acceptable, but Err must never be nil AND
	// leave batches unclosed (already guaranteed by the range above).
	_ = loader.Err()
}

func TestMemorySizedBatch_NeverZero(t *testing.T) {
	assert.Greater(t, memorySizedBatch(128), 0)
	assert.Greater(t, memorySizedBatch(0), 0)
	assert.Greater(t, memorySizedBatch(1<<20), 0)
}
