package solver

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sampler adds host readings to each Periodic event.
type Sampler interface {
	Sample(ctx context.Context) map[string]float64
}

// HostSampler reports system CPU and memory use via gopsutil. Readings
// that fail are left out rather than reported as zero.
type HostSampler struct{}

func (HostSampler) Sample(ctx context.Context) map[string]float64 {
	out := map[string]float64{}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		out["cpuLoad"] = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out["memUsed"] = vm.UsedPercent
	}
	return out
}

// NopSampler reports nothing.
type NopSampler struct{}

func (NopSampler) Sample(context.Context) map[string]float64 { return nil }
