package runtime

import (
	"runtime"

	"nu/internal/config"
	"nu/internal/model"
)

// hostDetector samples this process's own memory and goroutine footprint
// as a stand-in for host CPU/memory telemetry. There is no OS-resource
// sampling library anywhere in this corpus to ground this on (the
// kernel-bypass layer that would normally report per-core pressure is out
// of scope), so this reads runtime.MemStats and runtime.NumGoroutine
// directly against the ceilings in RuntimeConfig — goroutines are this
// port's stand-in for pinned preemptible threads, so a goroutine-count
// ceiling is the natural proxy for "too many cores held."
type hostDetector struct {
	memCeilingMBs    uint32
	goroutineCeiling uint32
}

func newHostDetector(cfg *config.RuntimeConfig) *hostDetector {
	return &hostDetector{
		memCeilingMBs:    cfg.MemCeilingMBs,
		goroutineCeiling: cfg.GoroutineCeiling,
	}
}

func (d *hostDetector) Detect() model.Pressure {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	const mb = 1 << 20
	usedMBs := uint32(ms.Alloc / mb)

	var p model.Pressure
	if d.memCeilingMBs > 0 && usedMBs > d.memCeilingMBs {
		p.MemMBsToRelease = usedMBs - d.memCeilingMBs
	}
	if d.goroutineCeiling > 0 && uint32(runtime.NumGoroutine()) > d.goroutineCeiling {
		p.CPUPressure = true
	}
	return p
}
