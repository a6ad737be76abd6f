package heap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nu/internal/model"
)

type fakeGate struct{ calls int }

func (g *fakeGate) SyncBarrier(mutate func()) {
	g.calls++
	mutate()
}

type fakePrimitive struct {
	kind model.PrimitiveKind
	id   uint64
}

func (p fakePrimitive) Kind() model.PrimitiveKind { return p.kind }
func (p fakePrimitive) ID() uint64                { return p.id }
func (p fakePrimitive) Waiters() []uint64         { return nil }

func TestHeapRegisterUnregister(t *testing.T) {
	h := New(1, "node-a:7000", []byte("hello"), &fakeGate{})

	m := fakePrimitive{kind: model.KindMutex, id: 1}
	v := fakePrimitive{kind: model.KindCondVar, id: 2}
	h.Register(m)
	h.Register(v)
	require.Len(t, h.Primitives(), 2)

	h.Unregister(m)
	prims := h.Primitives()
	require.Len(t, prims, 1)
	require.Equal(t, model.KindCondVar, prims[0].Kind())
}

func TestHeapContextRoundTrip(t *testing.T) {
	h := New(1, "node-a:7000", nil, &fakeGate{})
	ctx := WithHeap(context.Background(), h)
	require.Same(t, h, FromContext(ctx))
	require.Nil(t, FromContext(context.Background()))
}

func TestHeapInFlightAndState(t *testing.T) {
	h := New(1, "node-a:7000", nil, &fakeGate{})
	require.Equal(t, model.Resident, h.State())
	h.BeginInvocation()
	h.BeginInvocation()
	require.EqualValues(t, 2, h.InFlight())
	h.EndInvocation()
	require.EqualValues(t, 1, h.InFlight())

	h.SetState(model.Quiescing)
	require.Equal(t, model.Quiescing, h.State())
}

func TestHeapMemMBsRoundsUp(t *testing.T) {
	h := New(1, "node-a:7000", make([]byte, 1), &fakeGate{})
	require.EqualValues(t, 1, h.MemMBs())
	h2 := New(2, "node-a:7000", nil, &fakeGate{})
	require.EqualValues(t, 0, h2.MemMBs())
}
