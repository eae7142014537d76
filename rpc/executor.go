package rpc

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrExecutorClosed is returned by Submit once the executor has been closed.
var ErrExecutorClosed = errors.New("rpc: executor closed")

// Priority selects which queue Submit enqueues work on. Workers always drain
// PriorityNormal ahead of PriorityLow, so a saturated executor keeps making
// progress on primary-round RPCs even while a backlog of degraded-mode
// fallback calls is waiting.
type Priority int

const (
	// PriorityNormal is a region's primary-round RPC: an upsert, a
	// batch-query, or a search's first pass over an index's regions.
	PriorityNormal Priority = iota
	// PriorityLow is a brute-force fallback RPC re-issued to a region that
	// reported it has no DiskANN data built yet. Fallback rounds only run
	// after a primary round has already occupied the pool, so they must
	// never starve out primary work queued behind them.
	PriorityLow
)

// Executor runs a fixed pool of goroutines that issue RPCs and invoke their
// completion callbacks. Every fanout task submits its per-region calls
// through an Executor so that callbacks always run off the caller's
// goroutine, matching the async-callback contract every Task documents.
type Executor struct {
	workCh   chan func() // PriorityNormal
	lowCh    chan func() // PriorityLow
	stopCh   chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	submitMu sync.RWMutex
}

// NewExecutor starts numWorkers goroutines. numWorkers <= 0 defaults to
// GOMAXPROCS, appropriate for CPU-light, network-bound RPC dispatch.
func NewExecutor(numWorkers int) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	e := &Executor{
		workCh: make(chan func(), numWorkers*2),
		lowCh:  make(chan func(), numWorkers*2),
		stopCh: make(chan struct{}),
	}

	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.worker()
	}
	return e
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		// A pending normal-priority item always wins a tie against a
		// pending low-priority one: check it non-blocking before falling
		// into the fair select below.
		select {
		case fn, ok := <-e.workCh:
			if !ok {
				e.drain()
				return
			}
			fn()
			continue
		default:
		}

		select {
		case fn, ok := <-e.workCh:
			if !ok {
				e.drain()
				return
			}
			fn()
		case fn, ok := <-e.lowCh:
			if !ok {
				e.drain()
				return
			}
			fn()
		case <-e.stopCh:
			e.drain()
			return
		}
	}
}

// drain runs whatever work is already queued, normal priority first, without
// blocking for more to arrive. Called once per worker as it exits.
func (e *Executor) drain() {
	drainChannel(e.workCh)
	drainChannel(e.lowCh)
}

func drainChannel(ch chan func()) {
	for {
		select {
		case fn, ok := <-ch:
			if !ok {
				return
			}
			fn()
		default:
			return
		}
	}
}

// Submit enqueues fn as PriorityNormal work. It returns immediately after
// enqueueing; it does not wait for fn to run.
func (e *Executor) Submit(ctx context.Context, fn func()) error {
	return e.submit(ctx, fn, PriorityNormal)
}

// SubmitPriority enqueues fn at the given Priority.
func (e *Executor) SubmitPriority(ctx context.Context, fn func(), priority Priority) error {
	return e.submit(ctx, fn, priority)
}

func (e *Executor) submit(ctx context.Context, fn func(), priority Priority) error {
	e.submitMu.RLock()
	defer e.submitMu.RUnlock()

	if e.closed.Load() {
		return ErrExecutorClosed
	}

	ch := e.workCh
	if priority == PriorityLow {
		ch = e.lowCh
	}

	select {
	case ch <- fn:
		return nil
	case <-e.stopCh:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new work and waits for queued work to drain.
// Idempotent.
func (e *Executor) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}

	e.submitMu.Lock()
	close(e.stopCh)
	close(e.workCh)
	close(e.lowCh)
	e.submitMu.Unlock()

	e.wg.Wait()
}
