package syncx

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMutexMutualExclusion is property P1: at most one goroutine ever
// observes itself holding the mutex concurrently with another.
func TestMutexMutualExclusion(t *testing.T) {
	m := NewMutex()
	var holders atomic.Int32
	var maxHolders atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Lock()
				n := holders.Add(1)
				for {
					cur := maxHolders.Load()
					if n <= cur || maxHolders.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(time.Microsecond)
				holders.Add(-1)
				m.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxHolders.Load())
}

func TestMutexTryLock(t *testing.T) {
	m := NewMutex()
	require.True(t, m.TryLock())
	require.False(t, m.TryLock())
	m.Unlock()
	require.True(t, m.TryLock())
}

func TestMutexFIFOWaiters(t *testing.T) {
	m := NewMutex()
	m.Lock()

	const n = 5
	order := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			m.Lock()
			order <- i
			m.Unlock()
		}()
		// Give each goroutine a chance to enqueue before starting the next,
		// so the waiter list fills in launch order.
		for {
			if len(m.Waiters()) == i+1 {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	require.Len(t, m.Waiters(), n)
	m.Unlock()

	var got []int
	for i := 0; i < n; i++ {
		got = append(got, <-order)
	}
	for i := range got {
		require.Equal(t, i, got[i], "waiters must wake in FIFO order")
	}
}
