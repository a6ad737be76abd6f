package syncx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCondVarSignalWakesOne(t *testing.T) {
	m := NewMutex()
	v := NewCondVar()
	woke := make(chan int, 2)

	for i := 0; i < 2; i++ {
		i := i
		go func() {
			m.Lock()
			v.Wait(m)
			woke <- i
			m.Unlock()
		}()
	}
	for len(v.Waiters()) != 2 {
		time.Sleep(time.Millisecond)
	}
	v.Signal()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("signal did not wake any waiter")
	}
	require.Len(t, v.Waiters(), 1)
}

func TestCondVarBroadcastWakesAll(t *testing.T) {
	m := NewMutex()
	v := NewCondVar()
	const n = 8
	done := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		go func() {
			m.Lock()
			v.Wait(m)
			m.Unlock()
			done <- struct{}{}
		}()
	}
	for len(v.Waiters()) != n {
		time.Sleep(time.Millisecond)
	}
	v.SignalAll()

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("only %d/%d waiters woke", i, n)
		}
	}
	require.Empty(t, v.Waiters())
}

// TestCondVarFIFOOrderPreservedAcrossRestore is property P2: the order
// recorded by RestoreCondVar must equal the pre-migration FIFO order, and
// every reattached waiter must resume after SignalAll. The order in which
// the reattached goroutines resume is not checked.
func TestCondVarFIFOOrderPreservedAcrossRestore(t *testing.T) {
	m := NewMutex()
	v := NewCondVar()

	const n = 4
	for i := 0; i < n; i++ {
		go func() {
			m.Lock()
			v.Wait(m)
			m.Unlock()
		}()
	}
	for len(v.Waiters()) != n {
		time.Sleep(time.Millisecond)
	}
	tokens := v.Waiters()
	require.Len(t, tokens, n)

	restored := RestoreCondVar(v.ID(), tokens, 0, false)
	require.Equal(t, tokens, restored.Waiters())

	order := make(chan uint64, n)
	dm := NewMutex()
	for _, tok := range tokens {
		tok := tok
		go func() {
			dm.Lock()
			restored.Reattach(tok, dm)
			order <- tok
			dm.Unlock()
		}()
	}
	restored.SignalAll()
	var got []uint64
	for i := 0; i < n; i++ {
		got = append(got, <-order)
	}
	require.ElementsMatch(t, tokens, got)
}

func TestCondVarRestoreReplaysSignal(t *testing.T) {
	tokens := []uint64{NewToken(), NewToken()}
	restored := RestoreCondVar(NewToken(), tokens, 1, false)
	require.Len(t, restored.Waiters(), 1)
	require.Equal(t, tokens[1], restored.Waiters()[0])
}

func TestCondVarRestoreReplaysBroadcast(t *testing.T) {
	tokens := []uint64{NewToken(), NewToken(), NewToken()}
	restored := RestoreCondVar(NewToken(), tokens, 0, true)
	require.Empty(t, restored.Waiters())
}
