// Package config loads the runtime's single YAML configuration file, named
// by argv[1] at process start. The core has no further flags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nu/internal/model"
)

// RuntimeConfig is the full set of knobs the runtime initializer needs.
// Everything else (network transport, scheduler, CPU pinning) is supplied
// by the host environment, not this file.
type RuntimeConfig struct {
	SelfAddr       model.NodeAddr `yaml:"self_addr"`
	LoaderAddr     string         `yaml:"loader_addr"`
	AdminAddr      string         `yaml:"admin_addr,omitempty"`
	PollInterval   time.Duration  `yaml:"poll_interval"`
	MinNumCores    uint32         `yaml:"min_num_cores"`
	MinCoresToShed uint32         `yaml:"min_cores_to_shed"`
	NTPServer      string         `yaml:"ntp_server,omitempty"`
	LogLevel       string         `yaml:"log_level"`
	Peers          []PeerConfig   `yaml:"peers,omitempty"`

	// MemCeilingMBs and GoroutineCeiling are the local-node budgets the
	// pressure detector compares live usage against. There is no
	// kernel/cgroup resource-sampling library in play here (this port has
	// no kernel-bypass layer underneath, see DESIGN.md), so the detector
	// reads Go's own runtime.MemStats and goroutine count as the nearest
	// available proxy.
	MemCeilingMBs    uint32 `yaml:"mem_ceiling_mbs,omitempty"`
	GoroutineCeiling uint32 `yaml:"goroutine_ceiling,omitempty"`
}

// PeerConfig is one cluster member this node may migrate heaps to or
// accept RPC routes toward. FreeResource is a statically advertised
// capacity: real NodeStatus gossip would come from the DHT, which is out
// of scope here, so the destination picker reads this instead.
type PeerConfig struct {
	Addr         model.NodeAddr `yaml:"addr"`
	RPCAddr      string         `yaml:"rpc_addr"`
	FreeResource model.Resource `yaml:"free_resource,omitempty"`
}

func defaults() RuntimeConfig {
	return RuntimeConfig{
		PollInterval:     10 * time.Millisecond,
		MinNumCores:      model.MinNumCores,
		MinCoresToShed:   model.MinCoresToShed,
		LogLevel:         "info",
		MemCeilingMBs:    2048,
		GoroutineCeiling: 4096,
	}
}

// Load reads and parses the runtime config file at path, starting from
// defaults(). It returns an error if self_addr or loader_addr is missing;
// other absent fields keep their default or zero value.
func Load(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.SelfAddr == "" {
		return nil, fmt.Errorf("config %s: self_addr is required", path)
	}
	if cfg.LoaderAddr == "" {
		return nil, fmt.Errorf("config %s: loader_addr is required", path)
	}
	return &cfg, nil
}
