package syncx

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRCULockWriterWaitsForReaders is property P3: the writer's mutation
// must be observed only after every reader active at barrier time unlocks.
func TestRCULockWriterWaitsForReaders(t *testing.T) {
	r := NewRCULock()

	tok := r.ReaderLock()
	var mutated atomic.Bool
	barrierDone := make(chan struct{})
	go func() {
		r.SyncBarrier(func() { mutated.Store(true) })
		close(barrierDone)
	}()

	time.Sleep(20 * time.Millisecond)
	require.False(t, mutated.Load(), "writer must not mutate while a pre-barrier reader is still active")

	r.ReaderUnlock(tok)

	select {
	case <-barrierDone:
	case <-time.After(time.Second):
		t.Fatal("writer never completed after reader unlocked")
	}
	require.True(t, mutated.Load())
}

func TestRCULockNoReadersCompletesImmediately(t *testing.T) {
	r := NewRCULock()
	done := make(chan struct{})
	go func() {
		r.SyncBarrier(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("barrier with no readers should complete quickly")
	}
}

func TestRCULockConcurrentReadersAndWriter(t *testing.T) {
	r := NewRCULock()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				tok := r.ReaderLock()
				time.Sleep(time.Microsecond)
				r.ReaderUnlock(tok)
			}
		}()
	}

	for i := 0; i < 20; i++ {
		r.SyncBarrier(func() {})
	}
	close(stop)
	wg.Wait()
}
