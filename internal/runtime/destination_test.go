package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nu/internal/config"
	"nu/internal/model"
)

func TestPeerPickerSkipsUndersizedPeers(t *testing.T) {
	p := newPeerPicker([]config.PeerConfig{
		{Addr: "node-a:7000", FreeResource: model.Resource{Cores: 1, MemMBs: 100}},
		{Addr: "node-b:7000", FreeResource: model.Resource{Cores: 4, MemMBs: 4000}},
	})

	addr, ok := p.PickDestination(model.Pressure{MemMBsToRelease: 1000})
	require.True(t, ok)
	require.Equal(t, model.NodeAddr("node-b:7000"), addr)
}

func TestPeerPickerNoCandidatesReturnsFalse(t *testing.T) {
	p := newPeerPicker([]config.PeerConfig{
		{Addr: "node-a:7000", FreeResource: model.Resource{Cores: 1, MemMBs: 10}},
	})

	_, ok := p.PickDestination(model.Pressure{MemMBsToRelease: 1000})
	require.False(t, ok)
}

func TestPeerPickerNoPeersReturnsFalse(t *testing.T) {
	p := newPeerPicker(nil)
	_, ok := p.PickDestination(model.Pressure{MemMBsToRelease: 1})
	require.False(t, ok)
}

func TestPeerPickerRoundRobinsAmongEligiblePeers(t *testing.T) {
	p := newPeerPicker([]config.PeerConfig{
		{Addr: "node-a:7000", FreeResource: model.Resource{Cores: 2, MemMBs: 4000}},
		{Addr: "node-b:7000", FreeResource: model.Resource{Cores: 2, MemMBs: 4000}},
	})

	first, ok := p.PickDestination(model.Pressure{MemMBsToRelease: 100})
	require.True(t, ok)
	second, ok := p.PickDestination(model.Pressure{MemMBsToRelease: 100})
	require.True(t, ok)
	require.NotEqual(t, first, second)
}
