package syncx

import (
	"sync"

	"nu/internal/model"
)

// Mutex is a FIFO mutual-exclusion lock with an explicit, walkable waiter
// queue, in place of bare sync.Mutex: the migrator must be able to
// enumerate and serialize parked callers, which an opaque
// runtime-managed lock cannot offer.
type Mutex struct {
	id uint64

	mu      sync.Mutex
	held    bool
	waiters []*waiter
}

// NewMutex constructs a Mutex. It does not auto-register with a heap;
// callers that want migration coverage register explicitly via
// heap.Heap.Register.
func NewMutex() *Mutex {
	return &Mutex{id: NewToken()}
}

func (m *Mutex) Kind() model.PrimitiveKind { return model.KindMutex }
func (m *Mutex) ID() uint64                { return m.id }

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return false
	}
	m.held = true
	return true
}

// Lock blocks until the mutex is acquired. Contended callers enqueue FIFO
// and park on a private channel rather than looping on a shared condition,
// so wakeup is O(1) and preserves arrival order.
func (m *Mutex) Lock() {
	m.mu.Lock()
	if !m.held {
		m.held = true
		m.mu.Unlock()
		return
	}
	w := newWaiter()
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()
	<-w.done
}

// Unlock releases the mutex. If a waiter is queued, ownership is handed
// off to it directly (held stays true) rather than being dropped and
// re-raced, which is what keeps the FIFO order meaningful.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	if len(m.waiters) == 0 {
		m.held = false
		m.mu.Unlock()
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.mu.Unlock()
	close(next.done)
}

// Waiters returns a snapshot of parked waiter tokens, oldest first. Safe
// to call concurrently; used by the migrator to build a transfer record.
func (m *Mutex) Waiters() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := make([]uint64, len(m.waiters))
	for i, w := range m.waiters {
		tokens[i] = w.token
	}
	return tokens
}

// Held reports whether the mutex is currently owned.
func (m *Mutex) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// RestoreMutex rebuilds a Mutex on the migration destination from a
// transfer record: waiterTokens is the authoritative FIFO order recorded
// on the source. As with RestoreCondVar, recovered waiters are
// placeholders — the actual parked goroutine cannot move between
// processes, so the redirected caller re-parks via Reattach using its
// original token.
func RestoreMutex(id uint64, waiterTokens []uint64) *Mutex {
	m := &Mutex{id: id, held: len(waiterTokens) > 0}
	for _, t := range waiterTokens {
		m.waiters = append(m.waiters, &waiter{token: t, done: make(chan struct{})})
	}
	return m
}

// Reattach re-parks the caller identified by token, which RestoreMutex
// recorded as a waiter, returning once it is handed ownership.
func (m *Mutex) Reattach(token uint64) {
	m.mu.Lock()
	var found *waiter
	for _, w := range m.waiters {
		if w.token == token {
			found = w
			break
		}
	}
	m.mu.Unlock()
	if found != nil {
		<-found.done
	}
}
