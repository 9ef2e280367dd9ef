// Package system samples host CPU utilization and publishes it for
// lock-free concurrent reads by the difficulty selector.
package system

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// minimumSampleInterval is the shortest interval gopsutil needs between two
// calls to produce a meaningful non-blocking percentage; the warm-up sample
// blocks for this long once at startup, the Go analogue of sysinfo's
// MINIMUM_CPU_UPDATE_INTERVAL.
const minimumSampleInterval = 200 * time.Millisecond

// Gauge is a lock-free, single-value float32 published by one writer and
// read by many, the Go analogue of the original implementation's
// tokio::sync::watch channel.
type Gauge struct {
	bits atomic.Uint32
}

// Load returns the most recently published value.
func (g *Gauge) Load() float32 {
	return math.Float32frombits(g.bits.Load())
}

func (g *Gauge) store(v float32) {
	g.bits.Store(math.Float32bits(v))
}

// Sampler periodically refreshes a Gauge with the system-wide CPU usage
// percentage.
type Sampler struct {
	gauge    Gauge
	interval time.Duration
	logger   *slog.Logger
}

// NewSampler builds a Sampler that republishes CPU usage every interval.
// It performs the initial blocking warm-up sample immediately so the
// returned Sampler's Gauge is already populated.
func NewSampler(logger *slog.Logger, interval time.Duration) *Sampler {
	s := &Sampler{interval: interval, logger: logger}
	percents, err := cpu.Percent(minimumSampleInterval, false)
	if err != nil || len(percents) == 0 {
		s.logger.Error("initial cpu sample failed, assuming 0%", "error", err)
		s.gauge.store(0)
	} else {
		s.gauge.store(float32(percents[0]))
	}
	return s
}

// Gauge returns the Sampler's published gauge for readers.
func (s *Sampler) Gauge() *Gauge {
	return &s.gauge
}

// Run polls CPU usage every interval and publishes it to the gauge until ctx
// is cancelled. Sample failures are logged and do not stop the loop, mirroring
// gopsutil's documented idiom for repeated low-overhead sampling.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			percents, err := cpu.Percent(0, false)
			if err != nil || len(percents) == 0 {
				s.logger.Error("cpu sample failed, keeping previous value", "error", err)
				continue
			}
			s.gauge.store(float32(percents[0]))
		}
	}
}
