// Package platform periodically samples process resource usage for
// structured logs and the pubsub_process_* gauges. Adapted down from the
// teacher's cgroup-aware CPU monitor (cgroup.go,
// internal/single/platform/cgroup_cpu.go): that code sizes a WebSocket
// connection pool off container memory limits, a concern this broker
// doesn't have (spec.md has no connection-capacity notion), so the
// cgroup-quota parsing is dropped and only the gopsutil-based sampling
// loop is kept.
package platform

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one resource reading.
type Sample struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Sampler periodically reads process CPU and memory usage via gopsutil.
type Sampler struct {
	proc   *process.Process
	logger zerolog.Logger
}

// NewSampler builds a Sampler for the current process.
func NewSampler(logger zerolog.Logger) (*Sampler, error) {
	proc, err := process.NewProcess(int32(processPID()))
	if err != nil {
		return nil, err
	}
	return &Sampler{proc: proc, logger: logger}, nil
}

// Sample takes one reading. CPU percent is relative to a single core, as
// returned by gopsutil; callers comparing against GOMAXPROCS can scale it
// themselves.
func (s *Sampler) Sample() (Sample, error) {
	cpuPercent, err := s.proc.CPUPercent()
	if err != nil {
		return Sample{}, err
	}
	memPercent, err := s.proc.MemoryPercent()
	if err != nil {
		return Sample{}, err
	}
	if total, terr := mem.VirtualMemory(); terr == nil && total.Total == 0 {
		memPercent = 0
	}
	return Sample{CPUPercent: cpuPercent, MemoryPercent: float64(memPercent)}, nil
}

// Run samples every interval until ctx is cancelled, invoking report with
// each successful sample. Errors are logged, not fatal — a failed sample
// is skipped, the loop continues.
func (s *Sampler) Run(ctx context.Context, interval time.Duration, report func(Sample)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := s.Sample()
			if err != nil {
				s.logger.Warn().Err(err).Msg("resource sample failed")
				continue
			}
			report(sample)
		}
	}
}
