// Package heapmanager owns every proclet heap resident on this node and
// selects victims when the pressure monitor reports a shortage.
package heapmanager

import (
	"log/slog"
	"sort"

	"nu/internal/container"
	"nu/internal/heap"
	"nu/internal/model"
)

// Manager keeps the local node's heap index; it holds no NodeStatus, and
// destination capacity is tracked by the runtime's peer picker. The index
// itself is a container.RCUMap: the pressure monitor's PickHeaps walks
// every resident heap on every tick, and that scan never queues behind the
// writers' mutex of a migration concurrently adding or removing an entry;
// it waits only while such a writer's RCU barrier is raised.
type Manager struct {
	log   *slog.Logger
	heaps *container.RCUMap[model.HeapID, *heap.Heap]
}

func New() *Manager {
	return &Manager{
		log:   slog.With("component", "heapmanager"),
		heaps: container.NewRCUMap[model.HeapID, *heap.Heap](),
	}
}

// Add registers a newly-created or just-arrived heap as resident on this
// node.
func (m *Manager) Add(h *heap.Heap) {
	m.heaps.Put(h.ID(), h)
	m.log.Debug("heap added", "heap_id", h.ID())
}

// Remove drops h from the index, called once the migrator confirms it has
// evacuated to another node.
func (m *Manager) Remove(id model.HeapID) {
	m.heaps.Remove(id)
	m.log.Debug("heap removed", "heap_id", id)
}

// Get returns the heap for id, or nil if this node does not host it.
func (m *Manager) Get(id model.HeapID) *heap.Heap {
	h, ok := m.heaps.Get(id)
	if !ok {
		return nil
	}
	return h
}

// Len reports how many heaps are currently tracked, resident or not.
func (m *Manager) Len() int {
	return m.heaps.Len()
}

// All returns every tracked heap, for callers that need to walk the whole
// set (the runtime's clock-offset poller, the admin CLI's heap listing).
func (m *Manager) All() []*heap.Heap {
	out := make([]*heap.Heap, 0, m.heaps.Len())
	m.heaps.ForEach(func(_ model.HeapID, h *heap.Heap) {
		out = append(out, h)
	})
	return out
}

// PickHeaps selects a victim set to relieve p. For memory pressure it
// accumulates heaps, smallest transfer cost first among equally-idle
// candidates, until aggregate MemMBs meets p.MemMBsToRelease. For CPU
// pressure it accumulates until the shed heaps' in-flight invocation counts
// (standing in for cores held, since this port has no per-core attribution)
// reach model.MinCoresToShed. Only Resident heaps are ever candidates: a
// heap mid-migration or already evacuated is never picked twice.
func (m *Manager) PickHeaps(p model.Pressure) []*heap.Heap {
	if p.None() {
		return nil
	}

	candidates := m.residentCandidates()
	sortVictimOrder(candidates)

	if p.CPUPressure {
		return pickUntil(candidates, int64(model.MinCoresToShed), func(h *heap.Heap) int64 {
			return h.InFlight()
		})
	}
	return pickUntil(candidates, int64(p.MemMBsToRelease), func(h *heap.Heap) int64 {
		return int64(h.MemMBs())
	})
}

func (m *Manager) residentCandidates() []*heap.Heap {
	out := make([]*heap.Heap, 0, m.heaps.Len())
	m.heaps.ForEach(func(_ model.HeapID, h *heap.Heap) {
		if h.State() == model.Resident {
			out = append(out, h)
		}
	})
	return out
}

// sortVictimOrder implements the three ordered tie-breakers: not currently
// held under any primitive, then oldest by last invocation, then smallest
// heap first.
func sortVictimOrder(hs []*heap.Heap) {
	sort.SliceStable(hs, func(i, j int) bool {
		a, b := hs[i], hs[j]
		aHeld, bHeld := a.InFlight() > 0, b.InFlight() > 0
		if aHeld != bHeld {
			return !aHeld // not-held sorts first
		}
		at, bt := a.LastInvokedAt(), b.LastInvokedAt()
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.MemMBs() < b.MemMBs()
	})
}

func pickUntil(hs []*heap.Heap, target int64, weight func(*heap.Heap) int64) []*heap.Heap {
	if target <= 0 {
		return nil
	}
	var out []*heap.Heap
	var acc int64
	for _, h := range hs {
		if acc >= target {
			break
		}
		out = append(out, h)
		acc += weight(h)
	}
	return out
}
