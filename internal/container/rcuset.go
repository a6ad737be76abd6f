package container

import (
	"sync"
	"sync/atomic"

	"nu/internal/syncx"
)

// RCUHashSet is a set whose reads (Contains, ForEach) never block a
// migration-driving RCU barrier: readers register on a syncx.RCULock and
// see a copy-on-write snapshot; writers hold a mutex (serializing each
// other) and additionally drive the RCU sync barrier before publishing a
// new snapshot. Use for read-skewed membership tracking; RCUMap in this
// package is the keyed counterpart for read-skewed lookups.
type RCUHashSet[K comparable] struct {
	rcu  *syncx.RCULock
	wmu  sync.Mutex
	data atomic.Pointer[map[K]struct{}]
}

// NewRCUHashSet constructs an empty set.
func NewRCUHashSet[K comparable]() *RCUHashSet[K] {
	s := &RCUHashSet[K]{rcu: syncx.NewRCULock()}
	empty := make(map[K]struct{})
	s.data.Store(&empty)
	return s
}

// Contains reports whether k is in the set, as of some recent snapshot.
func (s *RCUHashSet[K]) Contains(k K) bool {
	tok := s.rcu.ReaderLock()
	defer s.rcu.ReaderUnlock(tok)
	m := s.data.Load()
	_, ok := (*m)[k]
	return ok
}

// ForEach calls fn for every element of a single consistent snapshot.
func (s *RCUHashSet[K]) ForEach(fn func(K)) {
	tok := s.rcu.ReaderLock()
	m := s.data.Load()
	keys := make([]K, 0, len(*m))
	for k := range *m {
		keys = append(keys, k)
	}
	s.rcu.ReaderUnlock(tok)
	for _, k := range keys {
		fn(k)
	}
}

// Len returns the size of the current snapshot.
func (s *RCUHashSet[K]) Len() int {
	tok := s.rcu.ReaderLock()
	defer s.rcu.ReaderUnlock(tok)
	return len(*s.data.Load())
}

// Put adds k, publishing a new snapshot only after the RCU barrier
// confirms no reader predates the mutation.
func (s *RCUHashSet[K]) Put(k K) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.rcu.SyncBarrier(func() {
		old := s.data.Load()
		next := make(map[K]struct{}, len(*old)+1)
		for kk := range *old {
			next[kk] = struct{}{}
		}
		next[k] = struct{}{}
		s.data.Store(&next)
	})
}

// Remove deletes k, if present, under the same barrier-then-publish
// protocol as Put.
func (s *RCUHashSet[K]) Remove(k K) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.rcu.SyncBarrier(func() {
		old := s.data.Load()
		if _, ok := (*old)[k]; !ok {
			return
		}
		next := make(map[K]struct{}, len(*old))
		for kk := range *old {
			if kk != k {
				next[kk] = struct{}{}
			}
		}
		s.data.Store(&next)
	})
}
