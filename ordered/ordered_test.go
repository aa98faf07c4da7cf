package ordered_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/bookie/ordered"
)

func TestSubmitOrderedPreservesPerKeyOrder(t *testing.T) {
	e := ordered.New("test", 4)

	const perKey = 200
	keys := []string{"ledger-1", "ledger-2", "ledger-3", "ledger-4", "ledger-5"}

	var mu sync.Mutex
	got := make(map[string][]int)
	var wg sync.WaitGroup
	wg.Add(len(keys) * perKey)

	for _, key := range keys {
		for i := 0; i < perKey; i++ {
			key, i := key, i
			e.SubmitOrdered(key, func() {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				wg.Done()
			})
		}
	}
	wg.Wait()
	e.Shutdown()

	for _, key := range keys {
		require.Len(t, got[key], perKey)
		for i, v := range got[key] {
			require.Equal(t, i, v, "tasks for %s ran out of order", key)
		}
	}
}

func TestSubmitRunsEverything(t *testing.T) {
	e := ordered.New("test", 3)
	var count int64
	const n = 500
	for i := 0; i < n; i++ {
		e.Submit(func() { atomic.AddInt64(&count, 1) })
	}
	// Shutdown drains queued tasks before returning
	e.Shutdown()
	assert.Equal(t, int64(n), atomic.LoadInt64(&count))
}

func TestSubmitAfterShutdownIsDropped(t *testing.T) {
	e := ordered.New("test", 1)
	e.Shutdown()
	assert.NotPanics(t, func() {
		e.Submit(func() {})
		e.SubmitOrdered("k", func() {})
	})
}

func TestShutdownIsIdempotent(t *testing.T) {
	e := ordered.New("test", 2)
	e.Shutdown()
	assert.NotPanics(t, e.Shutdown)
}
