package syncx

import "sync/atomic"

// SpinLock is a thin CAS-based lock for short critical sections that never
// need to migrate and never register for migration. Unlike
// Mutex it keeps no waiter queue, so it is cheaper but unfair under
// contention — acceptable for its only intended use, guarding a
// PartitionedSpinHashSet partition.
type SpinLock struct {
	held atomic.Bool
}

// TryLock attempts to acquire the lock without blocking.
func (s *SpinLock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}

// Lock busy-waits until the lock is acquired.
func (s *SpinLock) Lock() {
	for !s.TryLock() {
		spinWait()
	}
}

// Unlock releases the lock.
func (s *SpinLock) Unlock() {
	s.held.Store(false)
}
