package dataset

import (
	"context"
	"sync"

	"github.com/pbnjay/memory"
	"golang.org/x/time/rate"

	"github.com/yuhaijun999/dingo-sdk/vector"
)

const bytesPerFloat32 = 4

// Batch is one producer-yielded chunk of training vectors.
type Batch struct {
	Vectors []vector.VectorWithId
	More    bool
}

// Loader wraps a Dataset with a producer goroutine that fills a bounded
// channel of batches, so a benchmark driver can consume at its own pace
// while ingestion runs ahead of it.
type Loader struct {
	ds         Dataset
	batchSize  int
	queueDepth int
	limiter    *rate.Limiter

	batches chan Batch
	errOnce sync.Once
	err     error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithQueueDepth sets how many batches the producer may stage ahead of the
// consumer. Defaults to 4.
func WithQueueDepth(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.queueDepth = n
		}
	}
}

// WithBatchesPerSecond throttles production, smoothing bursts against a
// slow consumer or a rate-limited transport.
func WithBatchesPerSecond(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.limiter = rate.NewLimiter(rate.Limit(n), n)
		}
	}
}

// NewLoader builds a Loader over ds. batchSize <= 0 sizes the batch against
// available system memory: roughly 64MB of vector payload per batch,
// floored at 1 and capped against a fraction of total memory so tiny
// vectors don't produce absurdly large batches.
func NewLoader(ds Dataset, batchSize int, opts ...LoaderOption) *Loader {
	if batchSize <= 0 {
		batchSize = memorySizedBatch(ds.Dimension())
	}
	l := &Loader{
		ds:         ds,
		batchSize:  batchSize,
		queueDepth: 4,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.batches = make(chan Batch, l.queueDepth)
	return l
}

func memorySizedBatch(dimension int) int {
	if dimension <= 0 {
		return 1000
	}

	const targetBytes = 64 << 20
	perVector := dimension * bytesPerFloat32
	n := targetBytes / perVector
	if n < 1 {
		n = 1
	}

	if total := memory.TotalMemory(); total > 0 {
		if maxByMem := int(total / 64 / uint64(perVector)); maxByMem > 0 && n > maxByMem {
			n = maxByMem
		}
	}
	return n
}

// Run starts the producer goroutine. It returns immediately; consume
// Batches and check Err once the channel closes.
func (l *Loader) Run(ctx context.Context) {
	go func() {
		defer close(l.batches)

		for {
			if l.limiter != nil {
				if err := l.limiter.Wait(ctx); err != nil {
					l.setErr(err)
					return
				}
			}

			batch, more, err := l.ds.NextBatch(ctx, l.batchSize)
			if err != nil {
				l.setErr(err)
				return
			}

			select {
			case l.batches <- Batch{Vectors: batch, More: more}:
			case <-ctx.Done():
				l.setErr(ctx.Err())
				return
			}

			if !more {
				return
			}
		}
	}()
}

func (l *Loader) setErr(err error) {
	l.errOnce.Do(func() { l.err = err })
}

// Batches returns the channel of produced batches. It closes once the
// dataset is exhausted or an error occurs; check Err afterward.
func (l *Loader) Batches() <-chan Batch { return l.batches }

// Err returns the first error the producer observed, if any. Only
// meaningful after Batches has closed.
func (l *Loader) Err() error { return l.err }
