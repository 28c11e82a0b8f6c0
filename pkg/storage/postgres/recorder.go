package postgres

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kasyap/okx-corr/pkg/logger"
	"github.com/kasyap/okx-corr/pkg/market"
	"github.com/kasyap/okx-corr/pkg/sink"
)

const (
	insertTrade = `INSERT INTO trades (symbol, event_time, price, volume, processing_delay)
		VALUES ($1, $2, $3, $4, $5)`
	insertMovingAverage = `INSERT INTO moving_averages (symbol, computed_at, moving_avg, total_volume, avg_processing_delay)
		VALUES ($1, $2, $3, $4, $5)`
	insertCorrelation = `INSERT INTO correlations (symbol, computed_at, other_symbol, correlation, contributing_ma_time)
		VALUES ($1, $2, $3, $4, $5)`
	insertTiming = `INSERT INTO schedule_timing (woke_at, drift) VALUES ($1, $2)`
)

// batchSender is the part of the pool the writer needs.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type row struct {
	sql  string
	args []any
}

// RecorderConfig tunes the background writer.
type RecorderConfig struct {
	QueueSize    int
	BatchSize    int
	FlushTimeout time.Duration
}

// DefaultRecorderConfig returns the writer defaults.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{QueueSize: 8192, BatchSize: 256, FlushTimeout: 5 * time.Second}
}

// Recorder queues records and writes them in batches from Run. Record calls
// never block; rows are dropped when the queue is full or after the first
// failed write, which disables the mirror for the rest of the run.
type Recorder struct {
	db    batchSender
	cfg   RecorderConfig
	queue chan row
	log   *slog.Logger

	disabled atomic.Bool
	dropped  atomic.Int64
	written  atomic.Int64
}

// Compile-time interface check.
var _ sink.Recorder = (*Recorder)(nil)

// NewRecorder creates a recorder writing through pool.
func NewRecorder(pool *Pool, cfg RecorderConfig, log *slog.Logger) *Recorder {
	return newRecorder(pool, cfg, log)
}

func newRecorder(db batchSender, cfg RecorderConfig, log *slog.Logger) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		db:    db,
		cfg:   cfg,
		queue: make(chan row, cfg.QueueSize),
		log:   logger.Component(log, "postgres_mirror"),
	}
}

func (r *Recorder) enqueue(sql string, args ...any) {
	if r.disabled.Load() {
		return
	}
	select {
	case r.queue <- row{sql: sql, args: args}:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) RecordTrade(symbol string, t market.Trade) {
	r.enqueue(insertTrade, symbol, t.EventTime, t.Price, t.Volume, t.ProcessingDelay.Seconds())
}

func (r *Recorder) RecordMovingAverage(symbol string, ma market.MovingAverage) {
	r.enqueue(insertMovingAverage, symbol, ma.ComputedAt, ma.MovingAvg, ma.TotalVolume, ma.AvgDelay.Seconds())
}

// RecordCorrelation stores NULL peer columns when no peer has been found.
func (r *Recorder) RecordCorrelation(symbol string, at time.Time, peer market.BestPeer) {
	if !peer.Found() {
		r.enqueue(insertCorrelation, symbol, at, nil, nil, nil)
		return
	}
	var contributing any
	if !peer.ContributingMATime.IsZero() {
		contributing = peer.ContributingMATime
	}
	r.enqueue(insertCorrelation, symbol, at, peer.Symbol, peer.Correlation, contributing)
}

func (r *Recorder) RecordTiming(at time.Time, drift time.Duration) {
	r.enqueue(insertTiming, at, drift.Seconds())
}

// RecordCPUIdle is not mirrored.
func (r *Recorder) RecordCPUIdle(time.Time, float64) {}

// Disabled reports whether a write failure turned the mirror off.
func (r *Recorder) Disabled() bool { return r.disabled.Load() }

// Dropped is the number of rows discarded because the queue was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written is the number of rows committed.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	batch := make([]row, 0, r.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			r.drain(batch)
			return nil
		case rw := <-r.queue:
			batch = append(batch[:0], rw)
			batch = r.fill(batch)
			r.flush(context.WithoutCancel(ctx), batch)
		}
	}
}

// fill takes whatever is already queued, up to BatchSize.
func (r *Recorder) fill(batch []row) []row {
	for len(batch) < r.cfg.BatchSize {
		select {
		case rw := <-r.queue:
			batch = append(batch, rw)
		default:
			return batch
		}
	}
	return batch
}

func (r *Recorder) drain(batch []row) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FlushTimeout)
	defer cancel()
	for {
		batch = r.fill(batch[:0])
		if len(batch) == 0 {
			return
		}
		if !r.flush(ctx, batch) {
			return
		}
	}
}

func (r *Recorder) flush(ctx context.Context, rows []row) bool {
	if len(rows) == 0 || r.disabled.Load() {
		return false
	}
	b := &pgx.Batch{}
	for _, rw := range rows {
		b.Queue(rw.sql, rw.args...)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.FlushTimeout)
	defer cancel()
	if err := r.db.SendBatch(ctx, b).Close(); err != nil {
		r.disabled.Store(true)
		r.log.Error("postgres mirror write failed, disabling", "error", err, "rows", len(rows))
		return false
	}
	r.written.Add(int64(len(rows)))
	return true
}
