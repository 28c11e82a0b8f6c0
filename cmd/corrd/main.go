package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"golang.org/x/sync/errgroup"

	"github.com/kasyap/okx-corr/config"
	"github.com/kasyap/okx-corr/pkg/correlation"
	"github.com/kasyap/okx-corr/pkg/diagnostics"
	"github.com/kasyap/okx-corr/pkg/engine"
	"github.com/kasyap/okx-corr/pkg/logger"
	"github.com/kasyap/okx-corr/pkg/market"
	"github.com/kasyap/okx-corr/pkg/observability"
	"github.com/kasyap/okx-corr/pkg/okx"
	"github.com/kasyap/okx-corr/pkg/sink"
	"github.com/kasyap/okx-corr/pkg/storage/postgres"
)

// slogPyroscope routes profiler logs through slog.
type slogPyroscope struct{ l *slog.Logger }

func (s slogPyroscope) Infof(format string, args ...interface{}) {
	s.l.Info(fmt.Sprintf(format, args...))
}
func (s slogPyroscope) Debugf(format string, args ...interface{}) {
	s.l.Debug(fmt.Sprintf(format, args...))
}
func (s slogPyroscope) Errorf(format string, args ...interface{}) {
	s.l.Error(fmt.Sprintf(format, args...))
}

func startProfiler(addr string) (*pyroscope.Profiler, error) {
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: "okx-corr",
		ServerAddress:   addr,
		Logger:          slogPyroscope{l: logger.Component(slog.Default(), "pyroscope")},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(logger.Config{
		FilePath: cfg.LogPath,
		Level:    cfg.LogLevel,
		MaxSize:  cfg.RotateMB,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	slog.SetDefault(l)
	// Disable standard log flags as slog handles them
	log.SetFlags(0)

	slog.Info("OKX correlation engine starting",
		"symbols", cfg.Symbols,
		"cycle", cfg.CyclePeriod,
		"window", cfg.Window)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PyroscopeAddr != "" {
		profiler, err := startProfiler(cfg.PyroscopeAddr)
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := observability.NewMetrics("okx_corr")

	files := sink.NewFiles(sink.FilesConfig{
		DataDir:     cfg.DataDir,
		TimingFile:  cfg.TimingFile,
		CPUIdleFile: cfg.CPUIdleFile,
		RotateMB:    cfg.RotateMB,
	}, logger.Component(l, "sink"))
	defer func() {
		if err := files.Close(); err != nil {
			slog.Warn("closing record files", "error", err)
		}
	}()
	recorders := sink.Multi{files}
	if cfg.Console {
		recorders = append(recorders, sink.NewConsole(logger.NewConsole(os.Stdout)))
	}

	var mirror *postgres.Recorder
	if cfg.DatabaseURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := postgres.NewPool(dialCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		mirror = postgres.NewRecorder(pool, postgres.DefaultRecorderConfig(), l)
		recorders = append(recorders, mirror)
	}

	store := market.NewStore(market.StoreConfig{
		MaxInstruments: cfg.MaxInstruments,
		TradeCapacity:  cfg.TradeCapacity,
		HistorySize:    cfg.HistorySize,
		Window:         cfg.Window,
	})
	ingestor := market.NewIngestor(store, recorders, metrics, l)
	scheduler := engine.NewScheduler(store, correlation.NewEngine(l), engine.Config{
		Period:   cfg.CyclePeriod,
		Recorder: recorders,
		Observer: metrics,
		Logger:   l,
	})

	client := okx.NewClient(okx.Config{
		URL:               cfg.WebSocketURL,
		Symbols:           cfg.Symbols,
		ReconnectInterval: cfg.ReconnectInterval,
		PingInterval:      cfg.PingInterval,
	}, l)
	client.OnTicker(func(t okx.Ticker) {
		err := ingestor.Ingest(market.Tick{
			Symbol:     t.InstID,
			Price:      t.Last,
			Volume:     t.Volume,
			EventTime:  t.ReceivedAt,
			ReceivedAt: t.ReceivedAt,
		})
		if err != nil {
			slog.Debug("tick rejected", "symbol", t.InstID, "error", err)
		}
	})
	client.OnConnectionChange(metrics.SetConnected)

	if err := client.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect websocket: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		return runHeartbeat(gctx, cfg.HeartbeatInterval, store, client.IsConnected, NewStatusTracker(), cfg.Console)
	})
	if cfg.CPUSampleInterval > 0 {
		sampler := diagnostics.NewSampler(cfg.CPUSampleInterval, recorders, metrics, l)
		g.Go(func() error { return sampler.Run(gctx) })
	}
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			slog.Info("serving metrics", "addr", cfg.MetricsAddr)
			return metrics.Serve(gctx, cfg.MetricsAddr)
		})
	}
	if mirror != nil {
		g.Go(func() error { return mirror.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		slog.Error("shutting down after error", "error", err)
	}
	slog.Info("OKX correlation engine stopped")
}
