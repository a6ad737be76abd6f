package runtime

import (
	"sync"

	"nu/internal/config"
	"nu/internal/model"
)

// peerPicker resolves a migration destination from the node's statically
// configured peer list. A real deployment would refresh each peer's
// NodeStatus from DHT gossip; that component is out of scope here, so
// FreeResource is read once from config and never updated at runtime.
type peerPicker struct {
	mu    sync.Mutex
	peers []model.NodeStatus
	next  int
}

func newPeerPicker(peers []config.PeerConfig) *peerPicker {
	statuses := make([]model.NodeStatus, len(peers))
	for i, p := range peers {
		statuses[i] = model.NodeStatus{Addr: p.Addr, FreeResource: p.FreeResource}
	}
	return &peerPicker{peers: statuses}
}

// PickDestination round-robins over peers, skipping any that can't satisfy
// the memory this pressure reading needs relieved, starting from the peer
// after the one picked last time.
func (p *peerPicker) PickDestination(pr model.Pressure) (model.NodeAddr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.peers)
	if n == 0 {
		return "", false
	}
	need := model.Resource{MemMBs: pr.MemMBsToRelease}
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		if p.peers[idx].HasEnoughResource(need) {
			p.next = idx + 1
			return p.peers[idx].Addr, true
		}
	}
	return "", false
}
