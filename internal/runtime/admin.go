package runtime

import (
	"context"
	"encoding/json"
	"errors"

	"nu/internal/migrator"
	"nu/internal/model"
	"nu/internal/rpc"
)

// adminInvoker answers nuctl's requests the same way any proclet method
// call is answered: as a ProcletInvoker.Call over the RPC path, addressed
// by a reserved method-name prefix rather than a second transport. Request
// and response payloads are plain JSON — there is no spec-fixed byte
// layout for admin traffic the way there is for the migrator's frames, so
// there is nothing for a hand-rolled codec to buy here.
type adminInvoker struct {
	rt *Runtime
}

const (
	methodListHeaps    = "admin.ListHeaps"
	methodShowPressure = "admin.ShowPressure"
	methodForceMigrate = "admin.ForceMigrate"
)

type HeapSummary struct {
	ID       model.HeapID `json:"id"`
	State    string       `json:"state"`
	MemMBs   uint32       `json:"mem_mbs"`
	InFlight int64        `json:"in_flight"`
}

type ForceMigrateRequest struct {
	HeapIDs []model.HeapID `json:"heap_ids"`
	Dest    model.NodeAddr `json:"dest"`
}

func (a *adminInvoker) Call(ctx context.Context, req *rpc.CallRequest) (*rpc.CallResponse, error) {
	switch req.Method {
	case methodListHeaps:
		return a.listHeaps()
	case methodShowPressure:
		return a.showPressure()
	case methodForceMigrate:
		return a.forceMigrate(ctx, req.Arg)
	default:
		return nil, rpc.ErrUnknownMethod
	}
}

func (a *adminInvoker) listHeaps() (*rpc.CallResponse, error) {
	heaps := a.rt.heaps.All()
	out := make([]HeapSummary, len(heaps))
	for i, h := range heaps {
		out[i] = HeapSummary{ID: h.ID(), State: h.State().String(), MemMBs: h.MemMBs(), InFlight: h.InFlight()}
	}
	result, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return &rpc.CallResponse{OK: true, Result: result}, nil
}

func (a *adminInvoker) showPressure() (*rpc.CallResponse, error) {
	p := a.rt.detector.Detect()
	result, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return &rpc.CallResponse{OK: true, Result: result}, nil
}

func (a *adminInvoker) forceMigrate(ctx context.Context, arg []byte) (*rpc.CallResponse, error) {
	var req ForceMigrateRequest
	if err := json.Unmarshal(arg, &req); err != nil {
		return &rpc.CallResponse{OK: false, ErrMsg: "malformed request: " + err.Error()}, nil
	}
	if err := a.rt.mig.Migrate(ctx, req.HeapIDs, req.Dest); err != nil {
		if errors.Is(err, migrator.ErrUnknownHeap) {
			return nil, rpc.ErrHeapMoved
		}
		return &rpc.CallResponse{OK: false, ErrMsg: err.Error()}, nil
	}
	return &rpc.CallResponse{OK: true}, nil
}
