// Package nuclient is the admin SDK nuctl uses to reach a running
// nu-runtime process, grounded on the teacher's pkg/sdk/client idiom of a
// thin wrapper around one persistent connection. Unlike that client, there
// is no protoc-generated stub underneath: requests travel the same
// ProcletInvoker RPC path application code uses, addressed by a reserved
// method-name prefix.
package nuclient

import (
	"context"
	"encoding/json"
	"fmt"

	"nu/internal/model"
	"nu/internal/rpc"
)

const (
	methodListHeaps    = "admin.ListHeaps"
	methodShowPressure = "admin.ShowPressure"
	methodForceMigrate = "admin.ForceMigrate"
)

// HeapSummary mirrors internal/runtime's admin response shape.
type HeapSummary struct {
	ID       model.HeapID `json:"id"`
	State    string       `json:"state"`
	MemMBs   uint32       `json:"mem_mbs"`
	InFlight int64        `json:"in_flight"`
}

type forceMigrateRequest struct {
	HeapIDs []model.HeapID `json:"heap_ids"`
	Dest    model.NodeAddr `json:"dest"`
}

// Client is a single connection to one node's admin endpoint.
type Client struct {
	rc *rpc.RPCClient
}

// Dial connects to a node's admin address (RuntimeConfig.AdminAddr).
func Dial(addr string) (*Client, error) {
	rc, err := rpc.NewRPCClient(addr)
	if err != nil {
		return nil, fmt.Errorf("nuclient: dial %s: %w", addr, err)
	}
	return &Client{rc: rc}, nil
}

func (c *Client) Close() error { return c.rc.Close() }

// ListHeaps returns every heap resident on the connected node.
func (c *Client) ListHeaps(ctx context.Context) ([]HeapSummary, error) {
	result, err := c.rc.Call(ctx, methodListHeaps, nil)
	if err != nil {
		return nil, err
	}
	var out []HeapSummary
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("nuclient: decode heap list: %w", err)
	}
	return out, nil
}

// ShowPressure returns the connected node's current pressure reading.
func (c *Client) ShowPressure(ctx context.Context) (model.Pressure, error) {
	result, err := c.rc.Call(ctx, methodShowPressure, nil)
	if err != nil {
		return model.Pressure{}, err
	}
	var p model.Pressure
	if err := json.Unmarshal(result, &p); err != nil {
		return model.Pressure{}, fmt.Errorf("nuclient: decode pressure: %w", err)
	}
	return p, nil
}

// ForceMigrate asks the connected node to migrate ids to dest immediately,
// bypassing the pressure monitor.
func (c *Client) ForceMigrate(ctx context.Context, ids []model.HeapID, dest model.NodeAddr) error {
	arg, err := json.Marshal(forceMigrateRequest{HeapIDs: ids, Dest: dest})
	if err != nil {
		return err
	}
	_, err = c.rc.Call(ctx, methodForceMigrate, arg)
	return err
}
