// Package engine drives the once-per-minute aggregation and correlation cycle.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/kasyap/okx-corr/pkg/correlation"
	"github.com/kasyap/okx-corr/pkg/logger"
	"github.com/kasyap/okx-corr/pkg/market"
)

// Recorder receives the records produced by each cycle.
type Recorder interface {
	RecordMovingAverage(symbol string, ma market.MovingAverage)
	RecordCorrelation(symbol string, at time.Time, peer market.BestPeer)
	RecordTiming(at time.Time, drift time.Duration)
}

// Observer receives scheduler measurements.
type Observer interface {
	ObserveDrift(drift time.Duration)
	CycleCompleted(instruments, eligible int)
	CorrelationRound(took time.Duration)
	BestPeer(symbol string, peer market.BestPeer)
}

type noopRecorder struct{}

func (noopRecorder) RecordMovingAverage(string, market.MovingAverage)     {}
func (noopRecorder) RecordCorrelation(string, time.Time, market.BestPeer) {}
func (noopRecorder) RecordTiming(time.Time, time.Duration)                {}

type noopObserver struct{}

func (noopObserver) ObserveDrift(time.Duration)       {}
func (noopObserver) CycleCompleted(int, int)          {}
func (noopObserver) CorrelationRound(time.Duration)   {}
func (noopObserver) BestPeer(string, market.BestPeer) {}

// Config holds the scheduler's collaborators; zero fields get defaults.
type Config struct {
	Period   time.Duration
	Clock    Clock
	Recorder Recorder
	Observer Observer
	Logger   *slog.Logger
}

// Report summarizes one cycle.
type Report struct {
	At          time.Time
	Instruments int
	Eligible    int
	Correlated  bool
}

// Scheduler wakes on every period boundary, aggregates every instrument and,
// when at least two instruments have a full history, runs a correlation round
// that must finish before the next sleep is computed.
type Scheduler struct {
	store  *market.Store
	corr   *correlation.Engine
	period time.Duration
	clock  Clock
	rec    Recorder
	obs    Observer
	log    *slog.Logger
}

func NewScheduler(store *market.Store, corr *correlation.Engine, cfg Config) *Scheduler {
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		corr:   corr,
		period: cfg.Period,
		clock:  cfg.Clock,
		rec:    cfg.Recorder,
		obs:    cfg.Observer,
		log:    logger.Component(cfg.Logger, "scheduler"),
	}
}

// Run loops until ctx is cancelled. The sleep target is re-derived from the
// clock on every iteration, so a late wake-up never pushes later cycles off
// the boundary.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "period", s.period)
	for {
		if ctx.Err() != nil {
			s.log.Info("scheduler stopped")
			return nil
		}

		t0 := s.clock.Now()
		drift := Drift(t0, s.period)
		s.rec.RecordTiming(t0, drift)
		s.obs.ObserveDrift(drift)
		s.log.Debug("schedule drift", "drift_seconds", drift.Seconds())

		wake := NextBoundary(t0, s.period)
		if err := s.clock.Sleep(ctx, wake.Sub(t0)); err != nil {
			s.log.Info("scheduler stopped")
			return nil
		}

		// cancellation is only observed at the top of the loop; a started cycle finishes
		s.RunCycle(s.clock.Now())
	}
}

// RunCycle performs one aggregation and, if possible, one correlation round at now.
func (s *Scheduler) RunCycle(now time.Time) Report {
	c := s.store.Aggregate(now)
	for _, a := range c.Averages {
		s.rec.RecordMovingAverage(a.Symbol, a.Average)
	}

	rep := Report{At: now, Instruments: len(c.Averages), Eligible: len(c.Snapshot)}
	defer func() { s.obs.CycleCompleted(rep.Instruments, rep.Eligible) }()

	if len(c.Snapshot) < 2 {
		s.log.Debug("skipping correlation", "eligible", len(c.Snapshot))
		return rep
	}

	start := time.Now()
	s.corr.Run(c.Snapshot, now, func(r correlation.Result) {
		peer, err := s.store.ApplyPeer(r.Index, r.Peer)
		if err != nil {
			s.log.Error("apply best peer", "symbol", r.Symbol, "error", err)
			return
		}
		s.rec.RecordCorrelation(r.Symbol, now, peer)
		s.obs.BestPeer(r.Symbol, peer)
	})
	s.obs.CorrelationRound(time.Since(start))
	rep.Correlated = true
	return rep
}
