// Package task provides the shared lifecycle and concurrency primitives that
// every fanout task (upsert, batch-query, search) builds on: a latched
// first-error status, a reader-writer exclusion around task-local state, and
// an atomic fan-in counter that fires the completion callback exactly once.
package task

import (
	"sync"
	"sync/atomic"
)

// Base is embedded by every Task implementation. It owns nothing about the
// specific request/response shape; callers hold their own accumulator and
// take the write lock (via Lock/Unlock) while mutating it.
type Base struct {
	mu     sync.RWMutex
	status error // latched first non-nil error; nil means OK
	remain atomic.Int32
}

// Reset prepares the Base for a new round of fan-out, clearing any latched
// error and arming the fan-in counter at n. Callers reset before launching
// RPCs and must not call Reset concurrently with in-flight callbacks from a
// previous round.
func (b *Base) Reset(n int) {
	b.mu.Lock()
	b.status = nil
	b.mu.Unlock()
	b.remain.Store(int32(n))
}

// Lock/Unlock/RLock/RUnlock expose the task's exclusion directly so callers
// can protect task-specific accumulator state (per-region result maps,
// pending-id sets, etc.) with the same lock that guards status.
func (b *Base) Lock()    { b.mu.Lock() }
func (b *Base) Unlock()  { b.mu.Unlock() }
func (b *Base) RLock()   { b.mu.RLock() }
func (b *Base) RUnlock() { b.mu.RUnlock() }

// LatchError records err as the task's status if and only if no error has
// been latched yet: status always holds the first non-OK result observed,
// regardless of which callback observes it or in what order. Callers must
// hold the write lock.
func (b *Base) LatchError(err error) {
	if err == nil {
		return
	}
	if b.status == nil {
		b.status = err
	}
}

// Status returns the currently latched error (nil if OK so far). Callers
// must hold the read or write lock.
func (b *Base) Status() error {
	return b.status
}

// StatusSnapshot takes the read lock only long enough to snapshot status,
// so a caller deciding whether to signal completion never blocks writers
// longer than necessary.
func (b *Base) StatusSnapshot() error {
	b.RLock()
	defer b.RUnlock()
	return b.status
}

// Done decrements the fan-in counter and reports whether this call observed
// the 1->0 transition. Exactly one caller across the whole fan-out ever sees
// last == true; that caller owns firing the completion callback.
func (b *Base) Done() (last bool) {
	return b.remain.Add(-1) == 0
}

// Remaining reports the current fan-in counter value. Intended for tests and
// diagnostics only; do not use it to decide completion (use Done's return).
func (b *Base) Remaining() int32 {
	return b.remain.Load()
}
