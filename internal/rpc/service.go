package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ProcletInvoker is implemented by whatever runs on the destination side of
// an RPC: given a method name and an opaque argument, invoke the named
// proclet entry point and return an opaque result. The runtime façade
// supplies the concrete implementation; this package only knows how to
// carry the call over the wire.
type ProcletInvoker interface {
	Call(ctx context.Context, req *CallRequest) (*CallResponse, error)
}

const fullMethodCall = "/nu.ProcletInvoker/Call"

var procletInvokerServiceDesc = grpc.ServiceDesc{
	ServiceName: "nu.ProcletInvoker",
	HandlerType: (*ProcletInvoker)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: callHandler},
	},
	Metadata: "internal/rpc/service.go",
}

func callHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CallRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(ProcletInvoker).Call(ctx, in)
		return resp, toStatus(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethodCall}
	handler := func(ctx context.Context, req any) (any, error) {
		resp, err := srv.(ProcletInvoker).Call(ctx, req.(*CallRequest))
		return resp, toStatus(err)
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterProcletInvoker registers srv against s under the fixed service
// name every RPCClient dials by name.
func RegisterProcletInvoker(s *grpc.Server, srv ProcletInvoker) {
	s.RegisterService(&procletInvokerServiceDesc, srv)
}
