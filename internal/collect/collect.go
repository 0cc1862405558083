// Package collect samples host metrics for the report loop.
package collect

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/serverpulse/agent/internal/observability/log"
)

// Sample is one point-in-time reading of the host.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	CPUUsage  float64   `json:"cpu_usage"`
	MemUsage  float64   `json:"mem_usage"`
	DiskUsage float64   `json:"disk_usage"`
	UptimeSec uint64    `json:"uptime_sec"`
}

// Sampler reads host metrics. Individual probe failures degrade the
// sample to zero values rather than failing the whole reading; hosts
// routinely lack one probe or another.
type Sampler struct {
	diskPath string
	logger   log.Log
}

// NewSampler returns a sampler measuring disk usage at diskPath.
func NewSampler(diskPath string, logger log.Log) *Sampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Sampler{
		diskPath: diskPath,
		logger:   logger.With(log.String("component", "collect")),
	}
}

// Collect takes one sample. The context bounds the CPU measurement
// window.
func (s *Sampler) Collect(ctx context.Context) Sample {
	sample := Sample{Timestamp: time.Now().UTC()}

	if percents, err := cpu.PercentWithContext(ctx, time.Second, false); err != nil {
		s.logger.Warn("cpu probe failed", log.Error(err))
	} else if len(percents) > 0 {
		sample.CPUUsage = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		s.logger.Warn("memory probe failed", log.Error(err))
	} else {
		sample.MemUsage = vm.UsedPercent
	}

	if du, err := disk.UsageWithContext(ctx, s.diskPath); err != nil {
		s.logger.Warn("disk probe failed", log.Error(err), log.String("path", s.diskPath))
	} else {
		sample.DiskUsage = du.UsedPercent
	}

	if uptime, err := host.UptimeWithContext(ctx); err != nil {
		s.logger.Warn("uptime probe failed", log.Error(err))
	} else {
		sample.UptimeSec = uptime
	}

	return sample
}
