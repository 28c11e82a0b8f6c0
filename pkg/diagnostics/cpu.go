// Package diagnostics samples host CPU idle time independently of the engine.
package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/kasyap/okx-corr/pkg/logger"
)

// IdleRecorder receives one idle percentage per interval.
type IdleRecorder interface {
	RecordCPUIdle(at time.Time, idlePercent float64)
}

// IdleGauge mirrors the latest sample, typically into metrics.
type IdleGauge interface {
	SetCPUIdle(percent float64)
}

// TimesFunc returns aggregate CPU times across all cores.
type TimesFunc func(ctx context.Context) (cpu.TimesStat, error)

// Sampler emits 100*Δidle/Δtotal between consecutive readings.
type Sampler struct {
	interval time.Duration
	times    TimesFunc
	rec      IdleRecorder
	gauge    IdleGauge
	log      *slog.Logger
	now      func() time.Time

	prev    cpu.TimesStat
	hasPrev bool
}

// NewSampler builds a sampler over gopsutil's aggregate cpu times. gauge may be nil.
func NewSampler(interval time.Duration, rec IdleRecorder, gauge IdleGauge, log *slog.Logger) *Sampler {
	if log == nil {
		log = slog.Default()
	}
	return &Sampler{
		interval: interval,
		times:    aggregateTimes,
		rec:      rec,
		gauge:    gauge,
		log:      logger.Component(log, "cpu_sampler"),
		now:      time.Now,
	}
}

func aggregateTimes(ctx context.Context) (cpu.TimesStat, error) {
	stats, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return cpu.TimesStat{}, err
	}
	if len(stats) == 0 {
		return cpu.TimesStat{}, fmt.Errorf("cpu times: no aggregate entry")
	}
	return stats[0], nil
}

// total sums the same fields as the first eight columns of /proc/stat.
func total(t cpu.TimesStat) float64 {
	return t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
}

// Sample takes one reading. ok is false for the first reading and when no
// time has elapsed between readings.
func (s *Sampler) Sample(ctx context.Context) (idle float64, ok bool, err error) {
	cur, err := s.times(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("read cpu times: %w", err)
	}
	prev, had := s.prev, s.hasPrev
	s.prev, s.hasPrev = cur, true
	if !had {
		return 0, false, nil
	}

	dTotal := total(cur) - total(prev)
	if dTotal <= 0 {
		return 0, false, nil
	}
	idle = 100 * (cur.Idle - prev.Idle) / dTotal

	at := s.now()
	if s.rec != nil {
		s.rec.RecordCPUIdle(at, idle)
	}
	if s.gauge != nil {
		s.gauge.SetCPUIdle(idle)
	}
	return idle, true, nil
}

// Run samples every interval until ctx is cancelled. Read failures are logged
// and sampling continues.
func (s *Sampler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	warned := false
	for {
		if _, _, err := s.Sample(ctx); err != nil && !warned {
			s.log.Warn("cpu sampling failed", "error", err)
			warned = true
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
