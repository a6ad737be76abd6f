package syncx

import (
	"sync"

	"nu/internal/model"
)

// CondVar is a FIFO condition variable. Wait atomically releases the
// associated Mutex, parks the caller, and reacquires the mutex before
// returning — the same contract as sync.Cond, but with an explicit,
// serializable waiter queue instead of a runtime-private one.
type CondVar struct {
	id uint64

	mu              sync.Mutex
	waiters         []*waiter
	migrationRecord func(broadcast bool)
}

// NewCondVar constructs a CondVar. Registration with the owning heap is
// the caller's responsibility (see heap.Heap.Register) — not a constructor
// side effect.
func NewCondVar() *CondVar {
	return &CondVar{id: NewToken()}
}

func (v *CondVar) Kind() model.PrimitiveKind { return model.KindCondVar }
func (v *CondVar) ID() uint64                { return v.id }

// Wait releases m, parks the caller FIFO on v, and reacquires m before
// returning. The caller must hold m.
func (v *CondVar) Wait(m *Mutex) {
	w := newWaiter()
	v.mu.Lock()
	v.waiters = append(v.waiters, w)
	v.mu.Unlock()

	m.Unlock()
	<-w.done
	m.Lock()
}

// Signal wakes the longest-waiting parked caller, if any.
func (v *CondVar) Signal() {
	if rec := v.interceptRecorder(); rec != nil {
		rec(false)
		return
	}
	v.wake(1)
}

// SignalAll wakes every parked caller.
func (v *CondVar) SignalAll() {
	if rec := v.interceptRecorder(); rec != nil {
		rec(true)
		return
	}
	v.wake(-1)
}

func (v *CondVar) interceptRecorder() func(bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.migrationRecord
}

// BeginMigrationIntercept redirects Signal/SignalAll away from locally
// waking parked callers and into record instead, for the window between
// snapshotting v's waiters and the destination's ack — a signal issued in
// that window belongs in the transfer's pending-signal list, not applied
// here, since the parked caller it would wake is about to be serialized out.
func (v *CondVar) BeginMigrationIntercept(record func(broadcast bool)) {
	v.mu.Lock()
	v.migrationRecord = record
	v.mu.Unlock()
}

// EndMigrationIntercept restores normal local delivery, used when a
// migration aborts and the heap rolls back to Resident.
func (v *CondVar) EndMigrationIntercept() {
	v.mu.Lock()
	v.migrationRecord = nil
	v.mu.Unlock()
}

func (v *CondVar) wake(n int) {
	v.mu.Lock()
	if len(v.waiters) == 0 {
		v.mu.Unlock()
		return
	}
	var woken []*waiter
	if n < 0 || n >= len(v.waiters) {
		woken = v.waiters
		v.waiters = nil
	} else {
		woken = v.waiters[:n]
		v.waiters = v.waiters[n:]
	}
	v.mu.Unlock()
	for _, w := range woken {
		close(w.done)
	}
}

// Waiters returns a snapshot of parked waiter tokens, oldest first.
func (v *CondVar) Waiters() []uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	tokens := make([]uint64, len(v.waiters))
	for i, w := range v.waiters {
		tokens[i] = w.token
	}
	return tokens
}

// RestoreCondVar rebuilds a CondVar on the migration destination from a
// transfer record: waiterTokens is the authoritative FIFO order recorded
// on the source at the Quiescing→Migrating transition. pendingSignals (or
// broadcast) replays a Signal/SignalAll the source issued after the
// snapshot was taken but before the ack, per the SIGNAL_REPLAY frame.
//
// Waiters recovered this way are placeholders: the goroutine that was
// actually parked cannot move between processes, so it re-parks by
// calling Reattach with the same token once its caller is redirected to
// this node.
func RestoreCondVar(id uint64, waiterTokens []uint64, pendingSignals int, broadcast bool) *CondVar {
	v := &CondVar{id: id}
	for _, t := range waiterTokens {
		v.waiters = append(v.waiters, &waiter{token: t, done: make(chan struct{})})
	}
	switch {
	case broadcast:
		v.wake(-1)
	case pendingSignals > 0:
		v.wake(pendingSignals)
	}
	return v
}

// Reattach re-parks the caller identified by token, which RestoreCondVar
// recorded as a waiter. If a replayed signal already consumed that token,
// Reattach returns immediately with m re-locked, preserving the same
// wake-then-reacquire contract as Wait.
func (v *CondVar) Reattach(token uint64, m *Mutex) {
	v.mu.Lock()
	var found *waiter
	for _, w := range v.waiters {
		if w.token == token {
			found = w
			break
		}
	}
	v.mu.Unlock()

	m.Unlock()
	if found != nil {
		<-found.done
	}
	m.Lock()
}
