package market

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/kasyap/okx-corr/pkg/logger"
)

// TradeRecorder receives every accepted trade.
type TradeRecorder interface {
	RecordTrade(symbol string, t Trade)
}

// IngestObserver is notified of ingestion outcomes. Drop reasons are
// "window_full", "capacity" and "malformed".
type IngestObserver interface {
	TradeAccepted(symbol string)
	TradeDropped(reason string)
}

const (
	DropWindowFull = "window_full"
	DropCapacity   = "capacity"
	DropMalformed  = "malformed"
)

type noopObserver struct{}

func (noopObserver) TradeAccepted(string) {}
func (noopObserver) TradeDropped(string)  {}

// Ingestor is the entry point for decoded trade events.
type Ingestor struct {
	store    *Store
	recorder TradeRecorder
	observer IngestObserver
	log      *slog.Logger

	mu       sync.Mutex
	rejected map[string]struct{}
}

// NewIngestor wires the ingestion path. recorder, observer and log may be nil.
func NewIngestor(store *Store, recorder TradeRecorder, observer IngestObserver, log *slog.Logger) *Ingestor {
	if observer == nil {
		observer = noopObserver{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		store:    store,
		recorder: recorder,
		observer: observer,
		log:      logger.Component(log, "ingest"),
		rejected: make(map[string]struct{}),
	}
}

func validTick(t Tick) bool {
	if t.Symbol == "" || t.EventTime.IsZero() || t.ReceivedAt.IsZero() {
		return false
	}
	for _, v := range []float64{t.Price, t.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Ingest appends one tick. Ticks for an instrument beyond the table capacity
// are rejected with ErrTooManyInstruments; a full trade window drops the tick
// silently.
func (in *Ingestor) Ingest(t Tick) error {
	if !validTick(t) {
		in.observer.TradeDropped(DropMalformed)
		return fmt.Errorf("ingest %q: %w", t.Symbol, ErrMalformedTick)
	}

	trade, accepted, err := in.store.Append(t)
	if err != nil {
		reason := DropCapacity
		if errors.Is(err, ErrInvalidSymbol) {
			reason = DropMalformed
		}
		in.observer.TradeDropped(reason)
		in.warnOnce(t.Symbol, err)
		return fmt.Errorf("ingest %q: %w", t.Symbol, err)
	}
	if !accepted {
		in.observer.TradeDropped(DropWindowFull)
		return nil
	}

	in.observer.TradeAccepted(t.Symbol)
	if in.recorder != nil {
		in.recorder.RecordTrade(t.Symbol, trade)
	}
	return nil
}

func (in *Ingestor) warnOnce(symbol string, err error) {
	in.mu.Lock()
	_, seen := in.rejected[symbol]
	in.rejected[symbol] = struct{}{}
	in.mu.Unlock()
	if !seen {
		in.log.Warn("instrument rejected, dropping all of its ticks", "symbol", symbol, "error", err)
	}
}
