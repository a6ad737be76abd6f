package heapmanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nu/internal/heap"
	"nu/internal/model"
)

type fakeGate struct{}

func (fakeGate) SyncBarrier(mutate func()) { mutate() }

func newTestHeap(id model.HeapID, size int) *heap.Heap {
	return heap.New(model.HeapID(id), "node-a:7000", make([]byte, size), fakeGate{})
}

func TestPickHeapsNoPressureReturnsNil(t *testing.T) {
	m := New()
	m.Add(newTestHeap(1, 10<<20))
	require.Nil(t, m.PickHeaps(model.Pressure{}))
}

func TestPickHeapsMemoryPressureAccumulatesUntilTarget(t *testing.T) {
	m := New()
	m.Add(newTestHeap(1, 100<<20))
	m.Add(newTestHeap(2, 50<<20))
	m.Add(newTestHeap(3, 10<<20))

	picked := m.PickHeaps(model.Pressure{MemMBsToRelease: 60})
	var total uint32
	for _, h := range picked {
		total += h.MemMBs()
	}
	require.GreaterOrEqual(t, total, uint32(60))
}

func TestPickHeapsOnlyResidentCandidates(t *testing.T) {
	m := New()
	resident := newTestHeap(1, 100<<20)
	migrating := newTestHeap(2, 100<<20)
	migrating.SetState(model.Migrating)
	m.Add(resident)
	m.Add(migrating)

	picked := m.PickHeaps(model.Pressure{MemMBsToRelease: 1})
	require.Len(t, picked, 1)
	require.Equal(t, model.HeapID(1), picked[0].ID())
}

func TestPickHeapsPrefersNotHeldThenOldestThenSmallest(t *testing.T) {
	m := New()

	held := newTestHeap(1, 1<<20)
	held.BeginInvocation()
	m.Add(held)

	idleOld := newTestHeap(2, 50<<20)
	m.Add(idleOld)

	time.Sleep(time.Millisecond)
	idleNew := newTestHeap(3, 1<<20)
	m.Add(idleNew)

	picked := m.PickHeaps(model.Pressure{MemMBsToRelease: 1})
	require.NotEmpty(t, picked)
	require.NotEqual(t, model.HeapID(1), picked[0].ID())
	require.Equal(t, model.HeapID(2), picked[0].ID(), "older idle heap is picked before a smaller, newer one")
}

func TestPickHeapsCPUPressureUsesInFlightAsWeight(t *testing.T) {
	m := New()
	busy := newTestHeap(1, 1<<20)
	busy.BeginInvocation()
	m.Add(busy)

	idle := newTestHeap(2, 1<<20)
	m.Add(idle)

	picked := m.PickHeaps(model.Pressure{CPUPressure: true})
	require.NotEmpty(t, picked)
}

func TestAddGetRemove(t *testing.T) {
	m := New()
	h := newTestHeap(1, 0)
	m.Add(h)
	require.Equal(t, h, m.Get(1))
	require.Equal(t, 1, m.Len())
	m.Remove(1)
	require.Nil(t, m.Get(1))
	require.Equal(t, 0, m.Len())
}
