// Package pressure implements the monitor: a single background loop that
// periodically samples resource pressure and, when any is present, asks
// the heap manager for victims and hands them to the migrator.
package pressure

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nu/internal/model"
)

// DefaultPollInterval mirrors kPollIntervalUs's default order of magnitude
// from the runtime configuration; callers override it via WithPollInterval.
const DefaultPollInterval = 10 * time.Millisecond

// Detector reports the current resource pressure signal. The production
// implementation samples whatever local telemetry the host node exposes;
// tests substitute their own Detector or override it with MockSetPressure.
type Detector interface {
	Detect() model.Pressure
}

// HeapManager is the subset of heapmanager.Manager the monitor drives. It
// reports victim IDs rather than heap pointers so this package never needs
// to import internal/heap; the runtime façade's adapter does the narrowing.
type HeapManager interface {
	PickHeaps(p model.Pressure) []model.HeapID
}

// Migrator is the subset of migrator.Migrator the monitor drives, taking
// heap IDs and a resolved destination rather than heap pointers so this
// package never imports internal/heap.
type Migrator interface {
	Migrate(ctx context.Context, ids []model.HeapID, dest model.NodeAddr) error
}

// DestinationPicker resolves where a set of victim heaps should land. The
// runtime façade supplies this from its view of peer NodeStatus; the
// monitor itself has no opinion on cluster membership.
type DestinationPicker interface {
	PickDestination(p model.Pressure) (model.NodeAddr, bool)
}

// Monitor runs the single background polling loop. It is the only entity
// that initiates migration.
type Monitor struct {
	log          *slog.Logger
	pollInterval time.Duration
	detector     Detector
	heaps        HeapManager
	migrator     Migrator
	dest         DestinationPicker

	stopped atomic.Bool
	mockMu  sync.RWMutex
	mock    *model.Pressure

	done chan struct{}
}

// Option configures a Monitor at construction.
type Option func(*Monitor)

func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

func New(detector Detector, heaps HeapManager, mig Migrator, dest DestinationPicker, opts ...Option) *Monitor {
	m := &Monitor{
		log:          slog.With("component", "pressure-monitor"),
		pollInterval: DefaultPollInterval,
		detector:     detector,
		heaps:        heaps,
		migrator:     mig,
		dest:         dest,
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run starts the poll loop and blocks until ctx is cancelled or Stop is
// called. The loop condition is "run while not stopped" — the source this
// port is grounded on inverted that check; this implementation takes the
// evidently-intended polarity.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for !m.stopped.Load() {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	p := m.detectPressure()
	if p.None() {
		return
	}

	ids := m.heaps.PickHeaps(p)
	if len(ids) == 0 {
		return
	}

	dest, ok := m.dest.PickDestination(p)
	if !ok {
		m.log.Warn("pressure detected but no destination available", "pressure", p)
		return
	}

	if err := m.migrator.Migrate(ctx, ids, dest); err != nil {
		m.log.Warn("migration attempt failed", "err", err, "dest", dest)
	}
}

// Stop sets the stopped flag and closes the done channel, so a running
// loop returns at once without waiting for its next tick. Stop must be
// called at most once.
func (m *Monitor) Stop() {
	m.stopped.Store(true)
	close(m.done)
}

// MockSetPressure overrides the detector for tests. Passing nil restores
// the real detector.
func (m *Monitor) MockSetPressure(p *model.Pressure) {
	m.mockMu.Lock()
	m.mock = p
	m.mockMu.Unlock()
}

func (m *Monitor) detectPressure() model.Pressure {
	m.mockMu.RLock()
	mock := m.mock
	m.mockMu.RUnlock()
	if mock != nil {
		return *mock
	}
	return m.detector.Detect()
}
