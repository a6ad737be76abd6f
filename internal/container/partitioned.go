// Package container provides the concurrent collections the heap header
// and RPC layer use to track registered primitives and clients without a
// single global lock.
package container

import (
	"nu/internal/syncx"
)

// DefaultPartitions is the default stripe count: prime, for good mixing
// with simple hashers.
const DefaultPartitions = 29

// Hasher computes a partition-selection hash for K.
type Hasher[K comparable] func(K) uint64

type partition[K comparable] struct {
	lock syncx.SpinLock
	set  map[K]struct{}
}

// PartitionedSpinHashSet is a set of K striped across N spinlock-guarded
// partitions. put/remove/contains take only the owning partition's lock;
// ForEach walks partitions one at a time, so it is safe but only
// eventually consistent across the whole set.
type PartitionedSpinHashSet[K comparable] struct {
	hash       Hasher[K]
	partitions []partition[K]
}

// NewPartitionedSpinHashSet builds a set with n partitions (DefaultPartitions
// if n <= 0), selecting a partition for k via hash(k) mod n.
func NewPartitionedSpinHashSet[K comparable](n int, hash Hasher[K]) *PartitionedSpinHashSet[K] {
	if n <= 0 {
		n = DefaultPartitions
	}
	s := &PartitionedSpinHashSet[K]{
		hash:       hash,
		partitions: make([]partition[K], n),
	}
	for i := range s.partitions {
		s.partitions[i].set = make(map[K]struct{})
	}
	return s
}

func (s *PartitionedSpinHashSet[K]) partitionFor(k K) *partition[K] {
	idx := s.hash(k) % uint64(len(s.partitions))
	return &s.partitions[idx]
}

// Put inserts k, returning true if it was newly added.
func (s *PartitionedSpinHashSet[K]) Put(k K) bool {
	p := s.partitionFor(k)
	p.lock.Lock()
	defer p.lock.Unlock()
	if _, ok := p.set[k]; ok {
		return false
	}
	p.set[k] = struct{}{}
	return true
}

// Remove deletes k, returning true if it was present.
func (s *PartitionedSpinHashSet[K]) Remove(k K) bool {
	p := s.partitionFor(k)
	p.lock.Lock()
	defer p.lock.Unlock()
	if _, ok := p.set[k]; !ok {
		return false
	}
	delete(p.set, k)
	return true
}

// Contains reports whether k is present.
func (s *PartitionedSpinHashSet[K]) Contains(k K) bool {
	p := s.partitionFor(k)
	p.lock.Lock()
	defer p.lock.Unlock()
	_, ok := p.set[k]
	return ok
}

// ForEach calls fn for every element, one partition lock at a time. An
// insert/remove racing with ForEach on a different partition is not
// reflected atomically across the whole set — only within one partition.
func (s *PartitionedSpinHashSet[K]) ForEach(fn func(K)) {
	for i := range s.partitions {
		p := &s.partitions[i]
		p.lock.Lock()
		keys := make([]K, 0, len(p.set))
		for k := range p.set {
			keys = append(keys, k)
		}
		p.lock.Unlock()
		for _, k := range keys {
			fn(k)
		}
	}
}

// AllKeys returns every element currently in the set.
func (s *PartitionedSpinHashSet[K]) AllKeys() []K {
	var out []K
	s.ForEach(func(k K) { out = append(out, k) })
	return out
}

// Len returns the number of elements, computed by summing partition
// sizes under their respective locks (not a single atomic snapshot).
func (s *PartitionedSpinHashSet[K]) Len() int {
	n := 0
	for i := range s.partitions {
		p := &s.partitions[i]
		p.lock.Lock()
		n += len(p.set)
		p.lock.Unlock()
	}
	return n
}
