// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kasyap/okx-corr/pkg/engine"
	"github.com/kasyap/okx-corr/pkg/market"
)

var (
	_ market.IngestObserver = (*Metrics)(nil)
	_ engine.Observer       = (*Metrics)(nil)
)

// Metrics holds all Prometheus metrics for the daemon on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	TradesIngested *prometheus.CounterVec
	TradesDropped  *prometheus.CounterVec
	WSConnected    prometheus.Gauge

	// Cycle metrics
	Cycles              prometheus.Counter
	Instruments         prometheus.Gauge
	EligibleInstruments prometheus.Gauge
	ScheduleDrift       prometheus.Histogram

	// Correlation metrics
	CorrelationRounds   prometheus.Counter
	CorrelationDuration prometheus.Histogram
	BestPeerCorrelation *prometheus.GaugeVec

	// Host diagnostics
	CPUIdlePercent prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "okx_corr"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TradesIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_ingested_total",
			Help:      "Trades appended to an instrument window",
		}, []string{"symbol"}),
		TradesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_dropped_total",
			Help:      "Trades dropped before reaching a window, by reason",
		}, []string{"reason"}),
		WSConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_connected",
			Help:      "1 while the exchange websocket is connected",
		}),

		Cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Completed aggregation cycles",
		}),
		Instruments: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "instruments",
			Help:      "Instruments aggregated in the last cycle",
		}),
		EligibleInstruments: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "eligible_instruments",
			Help:      "Instruments with a full moving-average history in the last cycle",
		}),
		ScheduleDrift: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "schedule_drift_seconds",
			Help:      "Distance of each wake-up past the minute boundary",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),

		CorrelationRounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "rounds_total",
			Help:      "Correlation rounds run",
		}),
		CorrelationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "duration_seconds",
			Help:      "Wall time of a correlation round including write-back",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		BestPeerCorrelation: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "best_peer_correlation",
			Help:      "Current best peer correlation per instrument",
		}, []string{"symbol"}),

		CPUIdlePercent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "cpu_idle_percent",
			Help:      "Host CPU idle percentage over the last sample interval",
		}),
	}
}

// Registry exposes the registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) TradeAccepted(symbol string) { m.TradesIngested.WithLabelValues(symbol).Inc() }
func (m *Metrics) TradeDropped(reason string)  { m.TradesDropped.WithLabelValues(reason).Inc() }

func (m *Metrics) ObserveDrift(drift time.Duration) { m.ScheduleDrift.Observe(drift.Seconds()) }

func (m *Metrics) CycleCompleted(instruments, eligible int) {
	m.Cycles.Inc()
	m.Instruments.Set(float64(instruments))
	m.EligibleInstruments.Set(float64(eligible))
}

func (m *Metrics) CorrelationRound(took time.Duration) {
	m.CorrelationRounds.Inc()
	m.CorrelationDuration.Observe(took.Seconds())
}

func (m *Metrics) BestPeer(symbol string, peer market.BestPeer) {
	if peer.Found() {
		m.BestPeerCorrelation.WithLabelValues(symbol).Set(peer.Correlation)
	}
}

func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.WSConnected.Set(1)
		return
	}
	m.WSConnected.Set(0)
}

func (m *Metrics) SetCPUIdle(percent float64) { m.CPUIdlePercent.Set(percent) }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
