// Package heap implements the per-proclet heap abstraction: an
// opaque byte region plus the set of synchronization primitives currently
// instantiated on it, tracked so the migrator can enumerate every waiter
// queue without walking heap memory.
package heap

import (
	"sync"
	"sync/atomic"
	"time"

	"nu/internal/container"
	"nu/internal/model"
)

func primitiveHash(p model.Primitive) uint64 { return p.ID() }

// Heap is a proclet's addressable region: its header plus its user bytes.
// Mutated only by threads currently pinned to it (via WithHeap) or by the
// migrator while State() != Resident.
type Heap struct {
	id   model.HeapID
	home atomic.Value // model.NodeAddr

	stateMu sync.RWMutex
	state   model.State

	bytesMu sync.RWMutex
	bytes   []byte

	mutexes  *container.PartitionedSpinHashSet[model.Primitive]
	condvars *container.PartitionedSpinHashSet[model.Primitive]

	inFlight      atomic.Int64
	lastInvokedAt atomic.Int64 // UnixNano of the last invocation to return

	rcu model.RCUGate

	offsetTSC atomic.Int64 // logical-physical clock skew, see internal/runtime
}

// New constructs a resident heap owned by home, with bytes as its initial
// contents and rcu as the quiescence gate the migrator drives during
// Quiescing→Migrating. rcu is an interface (not *syncx.RCULock) so this
// package never imports internal/syncx — see model.RCUGate.
func New(id model.HeapID, home model.NodeAddr, bytes []byte, rcu model.RCUGate) *Heap {
	h := &Heap{
		id:       id,
		state:    model.Resident,
		bytes:    bytes,
		mutexes:  container.NewPartitionedSpinHashSet[model.Primitive](container.DefaultPartitions, primitiveHash),
		condvars: container.NewPartitionedSpinHashSet[model.Primitive](container.DefaultPartitions, primitiveHash),
		rcu:      rcu,
	}
	h.home.Store(home)
	h.lastInvokedAt.Store(time.Now().UnixNano())
	return h
}

func (h *Heap) ID() model.HeapID { return h.id }

func (h *Heap) Home() model.NodeAddr { return h.home.Load().(model.NodeAddr) }

func (h *Heap) SetHome(addr model.NodeAddr) { h.home.Store(addr) }

func (h *Heap) State() model.State {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.state
}

// SetState transitions the heap's lifecycle state. The legality of a given
// transition is the migrator's responsibility;
// Heap itself only stores the value.
func (h *Heap) SetState(s model.State) {
	h.stateMu.Lock()
	h.state = s
	h.stateMu.Unlock()
}

func (h *Heap) Bytes() []byte {
	h.bytesMu.RLock()
	defer h.bytesMu.RUnlock()
	out := make([]byte, len(h.bytes))
	copy(out, h.bytes)
	return out
}

func (h *Heap) SetBytes(b []byte) {
	h.bytesMu.Lock()
	h.bytes = b
	h.bytesMu.Unlock()
}

// MemMBs reports the heap's current footprint, rounded up to whole
// megabytes (used by the heap manager's pressure-based selection).
func (h *Heap) MemMBs() uint32 {
	h.bytesMu.RLock()
	n := len(h.bytes)
	h.bytesMu.RUnlock()
	const mb = 1 << 20
	return uint32((n + mb - 1) / mb)
}

// RCU returns the quiescence gate the migrator drives during migration.
func (h *Heap) RCU() model.RCUGate { return h.rcu }

// Register adds p (a *syncx.Mutex or *syncx.CondVar) to the heap's
// tracked-primitive set.
func (h *Heap) Register(p model.Primitive) {
	switch p.Kind() {
	case model.KindMutex:
		h.mutexes.Put(p)
	case model.KindCondVar:
		h.condvars.Put(p)
	}
}

// Unregister removes p, called when it is destroyed.
func (h *Heap) Unregister(p model.Primitive) {
	switch p.Kind() {
	case model.KindMutex:
		h.mutexes.Remove(p)
	case model.KindCondVar:
		h.condvars.Remove(p)
	}
}

// Primitives returns every mutex and condvar currently registered, for the
// migrator's snapshot walk.
func (h *Heap) Primitives() []model.Primitive {
	out := h.mutexes.AllKeys()
	out = append(out, h.condvars.AllKeys()...)
	return out
}

// BeginInvocation marks the start of an invocation running against this
// heap; EndInvocation marks its completion. The migrator waits for
// InFlight to reach zero before leaving Quiescing.
func (h *Heap) BeginInvocation() { h.inFlight.Add(1) }

func (h *Heap) EndInvocation() {
	h.inFlight.Add(-1)
	h.lastInvokedAt.Store(time.Now().UnixNano())
}

func (h *Heap) InFlight() int64 { return h.inFlight.Load() }

// LastInvokedAt returns when the most recent invocation completed, used by
// the heap manager's "oldest first" tie-breaker.
func (h *Heap) LastInvokedAt() time.Time {
	return time.Unix(0, h.lastInvokedAt.Load())
}

// OffsetTSC returns the logical-minus-physical clock offset applied to
// this heap's notion of time, in microseconds.
func (h *Heap) OffsetTSC() int64 { return h.offsetTSC.Load() }

func (h *Heap) SetOffsetTSC(us int64) { h.offsetTSC.Store(us) }
