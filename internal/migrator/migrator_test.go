package migrator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nu/internal/heap"
	"nu/internal/heapmanager"
	"nu/internal/model"
	"nu/internal/syncx"
)

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func newMigratorPair(t *testing.T) (src, dst *Migrator, srcMgr, dstMgr *heapmanager.Manager, dstAddr model.NodeAddr) {
	t.Helper()
	srcMgr = heapmanager.New()
	dstMgr = heapmanager.New()

	srcAddr := freePort(t)
	dAddr := freePort(t)

	src = New(model.NodeAddr(srcAddr), srcMgr, nil)
	dst = New(model.NodeAddr(dAddr), dstMgr, nil)

	require.NoError(t, dst.Start(dAddr))
	t.Cleanup(func() { dst.Stop() })
	require.NoError(t, src.Start(srcAddr))
	t.Cleanup(func() { src.Stop() })

	return src, dst, srcMgr, dstMgr, model.NodeAddr(dAddr)
}

func TestMigrateZeroWaitersNoInFlightSucceeds(t *testing.T) {
	src, _, srcMgr, dstMgr, dstAddr := newMigratorPair(t)

	h := heap.New(1, "self", []byte("payload-bytes"), syncx.NewRCULock())
	srcMgr.Add(h)

	err := src.Migrate(context.Background(), []model.HeapID{1}, dstAddr)
	require.NoError(t, err)

	require.Nil(t, srcMgr.Get(1))
	moved := dstMgr.Get(1)
	require.NotNil(t, moved)
	require.Equal(t, model.Resident, moved.State())
	require.Equal(t, []byte("payload-bytes"), moved.Bytes())
}

func TestMigratePreservesRegisteredPrimitiveCount(t *testing.T) {
	src, _, srcMgr, dstMgr, dstAddr := newMigratorPair(t)

	h := heap.New(2, "self", nil, syncx.NewRCULock())
	h.Register(syncx.NewMutex())
	h.Register(syncx.NewCondVar())
	srcMgr.Add(h)

	require.NoError(t, src.Migrate(context.Background(), []model.HeapID{2}, dstAddr))

	moved := dstMgr.Get(2)
	require.NotNil(t, moved)
	require.Len(t, moved.Primitives(), 2)
}

func TestMigrateUnknownHeapReturnsError(t *testing.T) {
	src, _, _, _, dstAddr := newMigratorPair(t)

	err := src.Migrate(context.Background(), []model.HeapID{999}, dstAddr)
	require.Error(t, err)
}

func TestMigrateAbortOnUnreachableDestRollsBackToResident(t *testing.T) {
	srcMgr := heapmanager.New()
	srcAddr := freePort(t)
	src := New(model.NodeAddr(srcAddr), srcMgr, nil)
	require.NoError(t, src.Start(srcAddr))
	t.Cleanup(func() { src.Stop() })

	h := heap.New(3, "self", nil, syncx.NewRCULock())
	srcMgr.Add(h)

	// No listener on this address: dial fails.
	err := src.Migrate(context.Background(), []model.HeapID{3}, model.NodeAddr("127.0.0.1:1"))
	require.Error(t, err)
	require.Equal(t, model.Resident, h.State())
	require.NotNil(t, srcMgr.Get(3))
}

func TestMigrateWaitsForInFlightInvocationsToDrain(t *testing.T) {
	src, _, srcMgr, dstMgr, dstAddr := newMigratorPair(t)

	h := heap.New(4, "self", nil, syncx.NewRCULock())
	h.BeginInvocation()
	srcMgr.Add(h)

	done := make(chan error, 1)
	go func() {
		done <- src.Migrate(context.Background(), []model.HeapID{4}, dstAddr)
	}()

	select {
	case <-done:
		t.Fatal("migration completed before in-flight invocation ended")
	case <-time.After(30 * time.Millisecond):
	}

	h.EndInvocation()
	require.NoError(t, <-done)
	require.NotNil(t, dstMgr.Get(4))
}

func TestMigrateWaiterSurvivesWithFIFOOrderPreserved(t *testing.T) {
	src, _, srcMgr, dstMgr, dstAddr := newMigratorPair(t)

	h := heap.New(5, "self", nil, syncx.NewRCULock())
	cv := syncx.NewCondVar()
	m := syncx.NewMutex()
	h.Register(cv)
	h.Register(m)
	srcMgr.Add(h)

	m.Lock()
	parked := make(chan struct{})
	go func() {
		m.Lock()
		cv.Wait(m)
		close(parked)
		m.Unlock()
	}()
	time.Sleep(20 * time.Millisecond) // let the goroutine park on cv
	m.Unlock()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, src.Migrate(context.Background(), []model.HeapID{5}, dstAddr))

	moved := dstMgr.Get(5)
	require.NotNil(t, moved)
	var movedCV *syncx.CondVar
	for _, p := range moved.Primitives() {
		if c, ok := p.(*syncx.CondVar); ok {
			movedCV = c
		}
	}
	require.NotNil(t, movedCV)
	require.Len(t, movedCV.Waiters(), 1)
	require.Equal(t, cv.Waiters(), movedCV.Waiters(), "destination waiter tokens match the source queue in order")
}
