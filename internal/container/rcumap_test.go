package container

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRCUMapPutGetRemove(t *testing.T) {
	m := NewRCUMap[int, string]()
	_, ok := m.Get(1)
	require.False(t, ok)

	m.Put(1, "one")
	v, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, "one", v)
	require.Equal(t, 1, m.Len())

	m.Remove(1)
	_, ok = m.Get(1)
	require.False(t, ok)
	require.Equal(t, 0, m.Len())
}

func TestRCUMapForEachSnapshot(t *testing.T) {
	m := NewRCUMap[int, int]()
	for i := 0; i < 10; i++ {
		m.Put(i, i*i)
	}
	seen := map[int]int{}
	m.ForEach(func(k, v int) { seen[k] = v })
	require.Len(t, seen, 10)
	require.Equal(t, 9, seen[3])
}

func TestRCUMapConcurrentReadersDuringWrite(t *testing.T) {
	m := NewRCUMap[int, int]()
	for i := 0; i < 100; i++ {
		m.Put(i, i)
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
				m.ForEach(func(int, int) {})
			}
		}()
	}

	for i := 0; i < 100; i++ {
		m.Remove(i)
	}
	close(stop)
	wg.Wait()
	require.Equal(t, 0, m.Len())
}
