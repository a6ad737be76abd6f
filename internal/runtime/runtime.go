// Package runtime is the process-wide façade: it owns the heap manager,
// the migrator, and the pressure monitor, wires them together per
// RuntimeConfig, and drives their start/stop lifecycle. Grounded on the
// teacher's construct-then-serve daemon.Run idiom.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"nu/internal/check"
	"nu/internal/config"
	"nu/internal/heapmanager"
	"nu/internal/migrator"
	"nu/internal/model"
	"nu/internal/pressure"
	"nu/internal/rpc"
)

const ntpPollInterval = 60 * time.Second

// heapManagerAdapter narrows heapmanager.Manager's *heap.Heap-returning
// PickHeaps to the ID-only view pressure.HeapManager expects, so the
// pressure package never has to import internal/heap.
type heapManagerAdapter struct{ m *heapmanager.Manager }

func (a heapManagerAdapter) PickHeaps(p model.Pressure) []model.HeapID {
	hs := a.m.PickHeaps(p)
	ids := make([]model.HeapID, len(hs))
	for i, h := range hs {
		ids[i] = h.ID()
	}
	return ids
}

// Runtime ties the heap manager, migrator, and pressure monitor together
// for one node. Construct with New, then call Run.
type Runtime struct {
	log *slog.Logger
	cfg *config.RuntimeConfig

	heaps    *heapmanager.Manager
	mig      *migrator.Migrator
	mon      *pressure.Monitor
	rpcMgr   *rpc.RPCClientMgr[model.NodeAddr]
	detector *hostDetector

	tracerProvider *sdktrace.TracerProvider

	adminLn  net.Listener
	adminSrv *grpc.Server
	adminWG  sync.WaitGroup

	ntpWG   sync.WaitGroup
	ntpStop chan struct{}
}

// New wires a Runtime from cfg. The heap manager exists before the
// migrator is constructed, and the migrator before the monitor, mirroring
// the order Run later binds and runs them in.
func New(cfg *config.RuntimeConfig) (*Runtime, error) {
	check.Assert(cfg != nil, "runtime.New: cfg must not be nil")

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tracer := tp.Tracer("nu/migrator")

	heaps := heapmanager.New()
	mig := migrator.New(cfg.SelfAddr, heaps, tracer)

	dialer := func(addr model.NodeAddr) (string, error) {
		for _, p := range cfg.Peers {
			if p.Addr == addr {
				return p.RPCAddr, nil
			}
		}
		return "", fmt.Errorf("no rpc route configured for peer %s", addr)
	}
	rpcMgr := rpc.NewRPCClientMgr(dialer, func(a model.NodeAddr) string { return string(a) })

	detector := newHostDetector(cfg)
	dest := newPeerPicker(cfg.Peers)
	mon := pressure.New(detector, heapManagerAdapter{heaps}, mig, dest, pressure.WithPollInterval(cfg.PollInterval))

	return &Runtime{
		log:            slog.With("component", "runtime"),
		cfg:            cfg,
		heaps:          heaps,
		mig:            mig,
		mon:            mon,
		rpcMgr:         rpcMgr,
		detector:       detector,
		tracerProvider: tp,
		ntpStop:        make(chan struct{}),
	}, nil
}

// Run binds the migrator's loader socket, starts the NTP clock-offset
// poller, then runs the pressure monitor loop until ctx is cancelled.
// Binding order matches the façade's required init sequence: heap manager
// exists first (done in New), the migrator binds its port next, and only
// then does the monitor begin polling.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.mig.Start(r.cfg.LoaderAddr); err != nil {
		return fmt.Errorf("runtime: start migrator: %w", err)
	}
	if err := r.startAdminServer(); err != nil {
		return fmt.Errorf("runtime: start admin server: %w", err)
	}
	r.startNTPPoller(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.mon.Run(gctx)
		return nil
	})
	return g.Wait()
}

// Stop shuts the runtime down in reverse init order: the monitor stops
// polling first, then the migrator's loader socket closes, then the RPC
// pool and tracer release their resources. Errors from each step are
// aggregated rather than short-circuited, since every step should be
// attempted regardless of whether an earlier one failed.
func (r *Runtime) Stop() error {
	var result *multierror.Error

	r.mon.Stop()

	if err := r.mig.Stop(); err != nil {
		result = multierror.Append(result, fmt.Errorf("migrator: %w", err))
	}
	r.stopAdminServer()
	if err := r.rpcMgr.CloseAll(); err != nil {
		result = multierror.Append(result, fmt.Errorf("rpc pool: %w", err))
	}

	r.stopNTPPoller()

	if err := r.tracerProvider.Shutdown(context.Background()); err != nil {
		result = multierror.Append(result, fmt.Errorf("tracer provider: %w", err))
	}
	return result.ErrorOrNil()
}

// Heaps exposes the heap manager for the admin CLI and the RPC service
// implementation this process registers on its gRPC server.
func (r *Runtime) Heaps() *heapmanager.Manager { return r.heaps }

// Migrator exposes the migrator for the admin CLI's force-migrate command.
func (r *Runtime) Migrator() *migrator.Migrator { return r.mig }

// RPCClients exposes the RPC client pool for the admin CLI and for
// application code issuing cross-node proclet calls.
func (r *Runtime) RPCClients() *rpc.RPCClientMgr[model.NodeAddr] { return r.rpcMgr }

// startAdminServer serves nuctl's requests over the same ProcletInvoker
// RPC path application code uses, addressed by a reserved method-name
// prefix rather than a separate protocol. A blank AdminAddr disables it.
func (r *Runtime) startAdminServer() error {
	if r.cfg.AdminAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", r.cfg.AdminAddr)
	if err != nil {
		return err
	}
	r.adminLn = ln
	r.adminSrv = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	rpc.RegisterProcletInvoker(r.adminSrv, &adminInvoker{rt: r})

	r.adminWG.Add(1)
	go func() {
		defer r.adminWG.Done()
		if err := r.adminSrv.Serve(ln); err != nil {
			r.log.Debug("admin server stopped", "err", err)
		}
	}()
	r.log.Info("admin server listening", "addr", ln.Addr().String())
	return nil
}

func (r *Runtime) stopAdminServer() {
	if r.adminSrv == nil {
		return
	}
	r.adminSrv.GracefulStop()
	r.adminWG.Wait()
}

func (r *Runtime) startNTPPoller(ctx context.Context) {
	if r.cfg.NTPServer == "" {
		return
	}
	r.ntpWG.Add(1)
	go func() {
		defer r.ntpWG.Done()
		r.pollNTPOnce()

		ticker := time.NewTicker(ntpPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.ntpStop:
				return
			case <-ticker.C:
				r.pollNTPOnce()
			}
		}
	}()
}

// pollNTPOnce queries the configured NTP server and applies the resulting
// clock offset to every heap currently resident on this node, feeding the
// skew the migrator's destination uses to translate a heap's notion of
// time onto the local wall clock.
func (r *Runtime) pollNTPOnce() {
	resp, err := ntp.Query(r.cfg.NTPServer)
	if err != nil {
		r.log.Warn("ntp query failed", "server", r.cfg.NTPServer, "err", err)
		return
	}
	offsetUS := resp.ClockOffset.Microseconds()
	for _, h := range r.heaps.All() {
		h.SetOffsetTSC(offsetUS)
	}
}

func (r *Runtime) stopNTPPoller() {
	select {
	case <-r.ntpStop:
	default:
		close(r.ntpStop)
	}
	r.ntpWG.Wait()
}
