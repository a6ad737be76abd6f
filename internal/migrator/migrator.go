// Package migrator implements the live-migration protocol: quiescing a
// heap, snapshotting its registered primitives, transporting the snapshot
// to a peer's loader, and rehydrating it there.
package migrator

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nu/internal/heap"
	"nu/internal/model"
	"nu/internal/syncx"
)

// HeapManager is the subset of heapmanager.Manager the migrator drives.
type HeapManager interface {
	Get(id model.HeapID) *heap.Heap
	Add(h *heap.Heap)
	Remove(id model.HeapID)
}

// quiesceTick is how often the Quiescing→Migrating wait re-checks
// in-flight invocation count. Short because it's only ever a few polls in
// practice — invocations are expected to be brief.
const quiesceTick = time.Millisecond

const defaultAcceptBacklog = 64

// Migrator owns the loader listener and drives the migration state machine
// for every heap this node sheds or accepts.
type Migrator struct {
	log     *slog.Logger
	tracer  trace.Tracer
	heaps   HeapManager
	selfAddr model.NodeAddr

	ln     net.Listener
	wg     sync.WaitGroup
	closed chan struct{}
}

// New constructs a Migrator bound to heaps. Start must be called to begin
// accepting inbound transfers.
func New(selfAddr model.NodeAddr, heaps HeapManager, tracer trace.Tracer) *Migrator {
	return &Migrator{
		log:      slog.With("component", "migrator"),
		tracer:   tracer,
		heaps:    heaps,
		selfAddr: selfAddr,
		closed:   make(chan struct{}),
	}
}

// Start binds the loader listener at listenAddr and begins the accept
// loop. Mirrors the runtime façade's init ordering: heap manager exists
// before the migrator binds its port.
func (m *Migrator) Start(listenAddr string) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("migrator: listen %s: %w", listenAddr, err)
	}
	m.ln = ln
	m.wg.Add(1)
	go m.acceptLoop()
	m.log.Info("loader listening", "addr", ln.Addr().String())
	return nil
}

// Stop closes the loader socket and waits for in-flight inbound transfers
// to finish being handled.
func (m *Migrator) Stop() error {
	close(m.closed)
	var err error
	if m.ln != nil {
		err = m.ln.Close()
	}
	m.wg.Wait()
	return err
}

func (m *Migrator) acceptLoop() {
	defer m.wg.Done()
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			select {
			case <-m.closed:
				return
			default:
				m.log.Warn("accept failed", "err", err)
				return
			}
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.doLoad(conn)
		}()
	}
}

// doLoad handles one inbound transfer connection: parse the HEAP_XFER
// frame, rehydrate the heap and its primitives, and ack. A frame that fails
// to read or decode is logged and the connection closed with no reply; the
// loader never sends NACK.
func (m *Migrator) doLoad(conn net.Conn) {
	defer conn.Close()

	kind, payload, err := readFrame(conn)
	if err != nil {
		m.log.Warn("loader: frame read failed", "err", err)
		return
	}
	if kind != kindHeapXfer {
		m.log.Warn("loader: unexpected frame kind", "kind", kind)
		return
	}

	x, err := decodeHeapXfer(payload)
	if err != nil {
		m.log.Warn("loader: malformed HEAP_XFER", "err", err)
		return
	}

	h := heap.New(x.HeapID, m.selfAddr, x.HeapBytes, syncx.NewRCULock())
	h.SetOffsetTSC(x.OffsetTSC)

	pendingByOffset := make(map[uint64][]pendingSignal)
	for _, s := range x.PendingSignal {
		pendingByOffset[s.PrimOffset] = append(pendingByOffset[s.PrimOffset], s)
	}

	for _, p := range x.Primitives {
		switch p.Kind {
		case model.KindMutex:
			h.Register(syncx.RestoreMutex(p.Offset, p.Waiters))
		case model.KindCondVar:
			signals := pendingByOffset[p.Offset]
			broadcast := false
			count := 0
			for _, s := range signals {
				if s.Broadcast {
					broadcast = true
				} else {
					count++
				}
			}
			h.Register(syncx.RestoreCondVar(p.Offset, p.Waiters, count, broadcast))
		}
	}

	h.SetState(model.Resident)
	m.heaps.Add(h)

	if err := writeFrame(conn, kindAck, encodeAck(x.HeapID)); err != nil {
		m.log.Warn("loader: ack write failed", "heap_id", x.HeapID, "err", err)
		return
	}
	m.log.Info("loader: heap rehydrated", "heap_id", x.HeapID, "src", x.SrcNodeAddr)
}

// Migrate drives the full state machine for each of ids against dest:
// Resident→Quiescing→Migrating→Evacuated on success, or a rollback to
// Resident on any failure. Heaps are migrated independently; one failing
// does not block the others.
func (m *Migrator) Migrate(ctx context.Context, ids []model.HeapID, dest model.NodeAddr) error {
	var result *multierror.Error
	for _, id := range ids {
		if err := m.migrateOne(ctx, id, dest); err != nil {
			result = multierror.Append(result, fmt.Errorf("heap %d: %w", id, err))
		}
	}
	return result.ErrorOrNil()
}

func (m *Migrator) migrateOne(ctx context.Context, id model.HeapID, dest model.NodeAddr) error {
	spanCtx := ctx
	var span trace.Span
	if m.tracer != nil {
		spanCtx, span = m.tracer.Start(ctx, "migrator.migrate_one", trace.WithAttributes(
			attribute.Int64("heap_id", int64(id)),
			attribute.String("dest", string(dest)),
		))
		defer span.End()
	}

	h := m.heaps.Get(id)
	if h == nil {
		return ErrUnknownHeap
	}
	if h.State() != model.Resident {
		return fmt.Errorf("%w: heap %d is %s, not resident", ErrUnknownHeap, id, h.State())
	}

	h.SetState(model.Quiescing)

	if err := m.quiesce(spanCtx, h); err != nil {
		h.SetState(model.Resident)
		return err
	}

	h.SetState(model.Migrating)
	pending := m.interceptSignals(h)

	conn, err := net.Dial("tcp", string(dest))
	if err != nil {
		m.rollback(h, pending)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dial failed")
		}
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, dest, err)
	}
	defer conn.Close()

	x := m.snapshot(h, pending)
	if err := writeFrame(conn, kindHeapXfer, encodeHeapXfer(x)); err != nil {
		m.rollback(h, pending)
		if span != nil {
			span.RecordError(err)
		}
		return fmt.Errorf("%w: send heap_xfer: %v", ErrTransport, err)
	}

	kind, payload, err := readFrame(conn)
	if err != nil {
		m.rollback(h, pending)
		if span != nil {
			span.RecordError(err)
		}
		return fmt.Errorf("%w: read ack: %v", ErrTransport, err)
	}
	switch kind {
	case kindAck:
		ackID, err := decodeAck(payload)
		if err != nil || ackID != id {
			m.rollback(h, pending)
			return fmt.Errorf("%w: ack mismatch", ErrProtocol)
		}
	case kindNack:
		nackID, reason, _ := decodeNack(payload)
		m.rollback(h, pending)
		return fmt.Errorf("%w: destination nacked heap %d, reason %d", ErrNoResource, nackID, reason)
	default:
		m.rollback(h, pending)
		return fmt.Errorf("%w: unexpected response frame kind %d", ErrProtocol, kind)
	}

	h.SetHome(dest)
	h.SetState(model.Evacuated)
	m.heaps.Remove(id)
	m.log.Info("heap migrated", "heap_id", id, "dest", dest)
	return nil
}

// quiesce waits for in-flight invocations to drain and for the heap's RCU
// gate to confirm no reader predating the barrier remains active.
func (m *Migrator) quiesce(ctx context.Context, h *heap.Heap) error {
	ticker := time.NewTicker(quiesceTick)
	defer ticker.Stop()
	for h.InFlight() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	h.RCU().SyncBarrier(func() {})
	return nil
}

// interceptSignals arms every condvar on h to record signals issued during
// the Migrating window instead of waking local waiters, returning a
// collector that accumulates them for the HEAP_XFER's pending-signal list.
func (m *Migrator) interceptSignals(h *heap.Heap) *signalCollector {
	c := &signalCollector{}
	for _, p := range h.Primitives() {
		cv, ok := p.(*syncx.CondVar)
		if !ok {
			continue
		}
		offset := cv.ID()
		cv.BeginMigrationIntercept(func(broadcast bool) {
			c.record(offset, broadcast)
		})
	}
	return c
}

type signalCollector struct {
	mu      sync.Mutex
	signals []pendingSignal
}

func (c *signalCollector) record(offset uint64, broadcast bool) {
	c.mu.Lock()
	c.signals = append(c.signals, pendingSignal{PrimOffset: offset, Broadcast: broadcast})
	c.mu.Unlock()
}

func (c *signalCollector) snapshot() []pendingSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pendingSignal, len(c.signals))
	copy(out, c.signals)
	return out
}

func (m *Migrator) snapshot(h *heap.Heap, pending *signalCollector) heapXfer {
	var prims []primSnapshot
	for _, p := range h.Primitives() {
		prims = append(prims, primSnapshot{
			Kind:    p.Kind(),
			Offset:  p.ID(),
			Waiters: p.Waiters(),
		})
	}
	return heapXfer{
		HeapID:        h.ID(),
		SrcNodeAddr:   m.selfAddr,
		OffsetTSC:     h.OffsetTSC(),
		HeapBytes:     h.Bytes(),
		Primitives:    prims,
		PendingSignal: pending.snapshot(),
	}
}

// rollback restores h to Resident and disarms any signal interception,
// called on any failure after Quiescing began.
func (m *Migrator) rollback(h *heap.Heap, pending *signalCollector) {
	for _, p := range h.Primitives() {
		if cv, ok := p.(*syncx.CondVar); ok {
			cv.EndMigrationIntercept()
		}
	}
	h.SetState(model.Resident)
}
