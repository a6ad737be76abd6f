package rpc

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps a proclet-side error to the nearest gRPC status code so a
// caller on another node can distinguish "heap moved, retry" from "heap
// gone" from "node unreachable" without string-matching ErrMsg.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errdefs.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errdefs.IsUnavailable(err):
		return status.Error(codes.Unavailable, err.Error())
	case errdefs.IsFailedPrecondition(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errdefs.IsInvalidArgument(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errdefs.IsAlreadyExists(err):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ErrHeapMoved marks a call that landed on a node that no longer hosts the
// target heap — the caller should re-resolve the heap's home and retry.
var ErrHeapMoved = fmt.Errorf("heap moved off this node: %w", errdefs.ErrUnavailable)

// ErrUnknownMethod marks a Call naming a method the invoker doesn't export.
var ErrUnknownMethod = fmt.Errorf("unknown method: %w", errdefs.ErrNotFound)

func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), errdefs.ErrNotFound)
	case codes.Unavailable:
		return fmt.Errorf("%s: %w", st.Message(), errdefs.ErrUnavailable)
	case codes.FailedPrecondition:
		return fmt.Errorf("%s: %w", st.Message(), errdefs.ErrFailedPrecondition)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", st.Message(), errdefs.ErrInvalidArgument)
	default:
		return errors.New(st.Message())
	}
}
