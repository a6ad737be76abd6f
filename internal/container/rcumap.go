package container

import (
	"sync"
	"sync/atomic"

	"nu/internal/syncx"
)

// RCUMap is RCUHashSet's keyed sibling: a copy-on-write map whose readers
// (Get, ForEach, Len) never take the writers' mutex. A reader that arrives
// while a writer's RCU barrier is raised yields until that barrier clears;
// otherwise readers proceed without waiting. This is the heap manager's
// resident-heap index: the pressure monitor walks it on every tick while
// migrations concurrently add and remove entries.
type RCUMap[K comparable, V any] struct {
	rcu  *syncx.RCULock
	wmu  sync.Mutex
	data atomic.Pointer[map[K]V]
}

// NewRCUMap constructs an empty map.
func NewRCUMap[K comparable, V any]() *RCUMap[K, V] {
	m := &RCUMap[K, V]{rcu: syncx.NewRCULock()}
	empty := make(map[K]V)
	m.data.Store(&empty)
	return m
}

// Get returns the value for k and whether it was present, as of some
// recent snapshot.
func (m *RCUMap[K, V]) Get(k K) (V, bool) {
	tok := m.rcu.ReaderLock()
	defer m.rcu.ReaderUnlock(tok)
	snap := m.data.Load()
	v, ok := (*snap)[k]
	return v, ok
}

// ForEach calls fn for every entry of a single consistent snapshot.
func (m *RCUMap[K, V]) ForEach(fn func(K, V)) {
	tok := m.rcu.ReaderLock()
	snap := m.data.Load()
	type kv struct {
		k K
		v V
	}
	entries := make([]kv, 0, len(*snap))
	for k, v := range *snap {
		entries = append(entries, kv{k, v})
	}
	m.rcu.ReaderUnlock(tok)
	for _, e := range entries {
		fn(e.k, e.v)
	}
}

// Len returns the size of the current snapshot.
func (m *RCUMap[K, V]) Len() int {
	tok := m.rcu.ReaderLock()
	defer m.rcu.ReaderUnlock(tok)
	return len(*m.data.Load())
}

// Put inserts or overwrites k's value, publishing a new snapshot only
// after the RCU barrier confirms no reader predates the mutation.
func (m *RCUMap[K, V]) Put(k K, v V) {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	m.rcu.SyncBarrier(func() {
		old := m.data.Load()
		next := make(map[K]V, len(*old)+1)
		for kk, vv := range *old {
			next[kk] = vv
		}
		next[k] = v
		m.data.Store(&next)
	})
}

// Remove deletes k, if present, under the same barrier-then-publish
// protocol as Put.
func (m *RCUMap[K, V]) Remove(k K) {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	m.rcu.SyncBarrier(func() {
		old := m.data.Load()
		if _, ok := (*old)[k]; !ok {
			return
		}
		next := make(map[K]V, len(*old))
		for kk, vv := range *old {
			if kk != k {
				next[kk] = vv
			}
		}
		m.data.Store(&next)
	})
}
