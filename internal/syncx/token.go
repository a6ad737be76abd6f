package syncx

import "sync/atomic"

var tokenSeq atomic.Uint64

// NewToken returns a process-wide unique handle identifying a parked
// caller. The migrator serializes these alongside a primitive's waiter
// queue so FIFO order and identity survive a migration.
func NewToken() uint64 {
	return tokenSeq.Add(1)
}

// waiter is one parked caller in a Mutex or CondVar queue.
type waiter struct {
	token uint64
	done  chan struct{}
}

func newWaiter() *waiter {
	return &waiter{token: NewToken(), done: make(chan struct{})}
}
