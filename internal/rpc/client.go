package rpc

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
)

// RPCClient is a lazily-dialed connection to one node's proclet invocation
// service. Dialing is non-blocking (grpc.NewClient never blocks); failures
// only surface once a Call is attempted, at which point gRPC's own
// reconnect backoff takes over.
type RPCClient struct {
	target string

	mu   sync.Mutex
	conn *grpc.ClientConn
}

func dial(target string) (*grpc.ClientConn, error) {
	backoffConfig := backoff.DefaultConfig
	backoffConfig.MaxDelay = 15 * time.Second

	return grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoffConfig,
			MinConnectTimeout: 10 * time.Second,
		}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
}

func newRPCClient(target string) (*RPCClient, error) {
	conn, err := dial(target)
	if err != nil {
		return nil, err
	}
	return &RPCClient{target: target, conn: conn}, nil
}

// NewRPCClient dials target directly, for callers that want a single
// connection outside of a keyed RPCClientMgr pool (the admin CLI, tests).
func NewRPCClient(target string) (*RPCClient, error) {
	return newRPCClient(target)
}

// Call invokes method on the remote proclet invocation service with arg as
// the opaque argument payload, returning the callee's opaque result.
func (c *RPCClient) Call(ctx context.Context, method string, arg []byte) ([]byte, error) {
	req := &CallRequest{Method: method, Arg: arg}
	resp := new(CallResponse)

	if err := c.conn.Invoke(ctx, fullMethodCall, req, resp); err != nil {
		return nil, fromStatus(err)
	}
	if !resp.OK {
		return nil, errors.New(resp.ErrMsg)
	}
	return resp.Result, nil
}

// Target returns the dial target this client was constructed for.
func (c *RPCClient) Target() string { return c.target }

// Close releases the underlying connection.
func (c *RPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
