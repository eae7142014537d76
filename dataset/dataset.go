// Package dataset loads benchmark corpora (sift/glove/gist/mnist/laion,
// Wikipedia2212/Miracl/Bioasq/OpenaiLarge) into the shape the client SDK's
// Upsert/Search tasks consume. It is a producer feeding the benchmark
// driver; the core fanout/aggregation engine never depends on it.
package dataset

import (
	"context"
	"errors"

	"github.com/yuhaijun999/dingo-sdk/vector"
)

// ErrUnsupportedFormat is returned by a Dataset that recognizes its source
// but has no decoder plugged in for it.
var ErrUnsupportedFormat = errors.New("dataset: unsupported format")

// TestEntry is one query/ground-truth pair used to measure recall against a
// loaded dataset's train set.
type TestEntry struct {
	Query       vector.Vector
	GroundTruth []int64 // ids of the true nearest neighbors, ascending by distance
}

// Dataset is a benchmark corpus: a train set consumed in batches and an
// optional test set of queries with known ground truth.
type Dataset interface {
	Init(ctx context.Context) error
	Dimension() int
	TrainCount() int
	TestCount() int

	// NextBatch returns up to n training vectors. more reports whether
	// further batches remain.
	NextBatch(ctx context.Context, n int) (batch []vector.VectorWithId, more bool, err error)

	TestData(ctx context.Context) ([]TestEntry, error)
}
