package syncx

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpinLockMutualExclusion(t *testing.T) {
	var s SpinLock
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Lock()
			counter++
			s.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 100, counter)
}

func TestSpinLockTryLock(t *testing.T) {
	var s SpinLock
	require.True(t, s.TryLock())
	require.False(t, s.TryLock())
	s.Unlock()
	require.True(t, s.TryLock())
}
