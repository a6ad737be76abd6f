// Package rpc implements the lazy, keyed pool of RPC clients used to reach
// remote nodes, plus the generic "call a named proclet method with an
// opaque byte argument" wire path those clients speak.
package rpc

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Dialer resolves a key (typically a model.NodeAddr) to a dial target
// string. Split out from RPCClientMgr so tests can substitute an
// in-process target without a real listener.
type Dialer[K comparable] func(K) (string, error)

// RPCClientMgr is a lazily-populated, keyed pool of RPCClients. Concurrent
// callers requesting the same key while a connection is being established
// collapse onto a single dial via singleflight — ClientFor is idempotent
// under races, returning the same *RPCClient to every caller racing on the
// same key, which is what lets callers cache the pointer across calls.
type RPCClientMgr[K comparable] struct {
	toAddr Dialer[K]

	clients sync.Map // K -> *RPCClient
	group   singleflight.Group
	keyFmt  func(K) string
}

// NewRPCClientMgr builds a pool that resolves keys to dial targets via
// toAddr. keyFmt renders a key to a string for the singleflight group key;
// pass fmt.Sprint if K's default formatting is unambiguous.
func NewRPCClientMgr[K comparable](toAddr Dialer[K], keyFmt func(K) string) *RPCClientMgr[K] {
	return &RPCClientMgr[K]{toAddr: toAddr, keyFmt: keyFmt}
}

// ClientFor returns the pooled RPCClient for key, dialing lazily on first
// use. Safe for concurrent use by many callers racing on the same key.
func (m *RPCClientMgr[K]) ClientFor(key K) (*RPCClient, error) {
	if v, ok := m.clients.Load(key); ok {
		return v.(*RPCClient), nil
	}

	groupKey := m.keyFmt(key)
	v, err, _ := m.group.Do(groupKey, func() (any, error) {
		if v, ok := m.clients.Load(key); ok {
			return v.(*RPCClient), nil
		}
		addr, err := m.toAddr(key)
		if err != nil {
			return nil, fmt.Errorf("resolve rpc target: %w", err)
		}
		c, err := newRPCClient(addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		actual, _ := m.clients.LoadOrStore(key, c)
		return actual.(*RPCClient), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RPCClient), nil
}

// Evict closes and drops the pooled client for key, if any — called when a
// node is declared unreachable so the next ClientFor redials from scratch.
func (m *RPCClientMgr[K]) Evict(key K) {
	if v, ok := m.clients.LoadAndDelete(key); ok {
		_ = v.(*RPCClient).Close()
	}
}

// CloseAll closes every pooled client, used during runtime shutdown.
func (m *RPCClientMgr[K]) CloseAll() error {
	var firstErr error
	m.clients.Range(func(key, v any) bool {
		if err := v.(*RPCClient).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.clients.Delete(key)
		return true
	})
	return firstErr
}
