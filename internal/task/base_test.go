package task

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_LatchError_KeepsFirst(t *testing.T) {
	var b Base
	b.Reset(3)

	errA := errors.New("A")
	errB := errors.New("B")

	b.Lock()
	b.LatchError(errA)
	b.Unlock()

	b.Lock()
	b.LatchError(errB)
	b.Unlock()

	assert.Same(t, errA, b.StatusSnapshot())
}

func TestBase_LatchError_NilIgnored(t *testing.T) {
	var b Base
	b.Reset(1)

	b.Lock()
	b.LatchError(nil)
	b.Unlock()

	require.NoError(t, b.StatusSnapshot())
}

func TestBase_Done_FiresExactlyOnce(t *testing.T) {
	var b Base
	const n = 64
	b.Reset(n)

	var wg sync.WaitGroup
	var completions int
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Done() {
				mu.Lock()
				completions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, completions)
	assert.Equal(t, int32(0), b.Remaining())
}

func TestBase_FirstErrorAmongConcurrentFailures(t *testing.T) {
	// Under any interleaving of N callbacks with K>=1 failures, the final
	// status is one of the K error values, never a merged or synthesized one.
	errs := []error{errors.New("e1"), errors.New("e2"), errors.New("e3")}

	var b Base
	b.Reset(len(errs))

	var wg sync.WaitGroup
	for _, e := range errs {
		wg.Add(1)
		go func(e error) {
			defer wg.Done()
			b.Lock()
			b.LatchError(e)
			b.Unlock()
			b.Done()
		}(e)
	}
	wg.Wait()

	final := b.StatusSnapshot()
	require.Error(t, final)
	assert.Contains(t, errs, final)
}
