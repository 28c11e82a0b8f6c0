package sink

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kasyap/okx-corr/pkg/market"
)

// FilesConfig locates the record files.
type FilesConfig struct {
	DataDir     string // per-instrument streams live in DataDir/<symbol>/
	TimingFile  string
	CPUIdleFile string
	RotateMB    int
}

type symbolStreams struct {
	transactions  *Stream
	movingAverage *Stream
	correlation   *Stream
}

// Files writes every record stream as CSV. Per-instrument files are opened
// the first time a record for that instrument arrives.
type Files struct {
	cfg FilesConfig
	log *slog.Logger

	mu      sync.Mutex
	symbols map[string]*symbolStreams
	timing  *Stream
	cpuIdle *Stream
}

func NewFiles(cfg FilesConfig, log *slog.Logger) *Files {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	return &Files{cfg: cfg, log: log, symbols: make(map[string]*symbolStreams)}
}

func symbolDir(symbol string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return r.Replace(symbol)
}

func (f *Files) streams(symbol string) *symbolStreams {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ss, ok := f.symbols[symbol]; ok {
		return ss
	}
	dir := filepath.Join(f.cfg.DataDir, symbolDir(symbol))
	ss := &symbolStreams{
		transactions:  OpenStream(filepath.Join(dir, "transactions.csv"), TransactionHeader, f.cfg.RotateMB, f.log),
		movingAverage: OpenStream(filepath.Join(dir, "moving_average.csv"), MovingAverageHeader, f.cfg.RotateMB, f.log),
		correlation:   OpenStream(filepath.Join(dir, "correlation.csv"), CorrelationHeader, f.cfg.RotateMB, f.log),
	}
	f.symbols[symbol] = ss
	return ss
}

func (f *Files) global(slot **Stream, path string, header []string) *Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if *slot == nil {
		*slot = OpenStream(path, header, f.cfg.RotateMB, f.log)
	}
	return *slot
}

func (f *Files) RecordTrade(symbol string, t market.Trade) {
	f.streams(symbol).transactions.Write(TransactionRow(t)...)
}

func (f *Files) RecordMovingAverage(symbol string, ma market.MovingAverage) {
	f.streams(symbol).movingAverage.Write(MovingAverageRow(ma)...)
}

func (f *Files) RecordCorrelation(symbol string, at time.Time, peer market.BestPeer) {
	f.streams(symbol).correlation.Write(CorrelationRow(at, peer)...)
}

func (f *Files) RecordTiming(at time.Time, drift time.Duration) {
	if f.cfg.TimingFile == "" {
		return
	}
	f.global(&f.timing, f.cfg.TimingFile, TimingHeader).Write(TimingRow(at, drift)...)
}

func (f *Files) RecordCPUIdle(at time.Time, idlePercent float64) {
	if f.cfg.CPUIdleFile == "" {
		return
	}
	f.global(&f.cpuIdle, f.cfg.CPUIdleFile, CPUIdleHeader).Write(CPUIdleRow(at, idlePercent)...)
}

// Close closes every open stream.
func (f *Files) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, ss := range f.symbols {
		errs = append(errs, ss.transactions.Close(), ss.movingAverage.Close(), ss.correlation.Close())
	}
	for _, s := range []*Stream{f.timing, f.cpuIdle} {
		if s != nil {
			errs = append(errs, s.Close())
		}
	}
	return errors.Join(errs...)
}
