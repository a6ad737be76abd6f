package container

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRCUHashSetPutRemoveContains(t *testing.T) {
	s := NewRCUHashSet[int]()
	require.False(t, s.Contains(1))
	s.Put(1)
	require.True(t, s.Contains(1))
	require.Equal(t, 1, s.Len())
	s.Remove(1)
	require.False(t, s.Contains(1))
	require.Equal(t, 0, s.Len())
}

func TestRCUHashSetForEachSnapshot(t *testing.T) {
	s := NewRCUHashSet[int]()
	for i := 0; i < 10; i++ {
		s.Put(i)
	}
	seen := map[int]bool{}
	s.ForEach(func(k int) { seen[k] = true })
	require.Len(t, seen, 10)
}

func TestRCUHashSetConcurrentReadersDuringWrite(t *testing.T) {
	s := NewRCUHashSet[int]()
	for i := 0; i < 100; i++ {
		s.Put(i)
	}

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
				s.ForEach(func(int) {})
			}
		}()
	}

	for i := 0; i < 100; i++ {
		s.Remove(i)
	}
	close(stop)
	wg.Wait()
	require.Equal(t, 0, s.Len())
}
