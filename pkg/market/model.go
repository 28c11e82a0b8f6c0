package market

import (
	"errors"
	"time"
)

const (
	// DefaultTradeCapacity is the per-instrument trade window limit.
	DefaultTradeCapacity = 100000
	// DefaultHistorySize is the number of per-minute moving-average records kept.
	DefaultHistorySize = 8
	// DefaultMaxInstruments caps distinct instrument identities for the process lifetime.
	DefaultMaxInstruments = 8
	// DefaultWindow is the trailing trade window used by the minute aggregation.
	DefaultWindow = 15 * time.Minute

	// MaxSymbolLen is the longest accepted instrument identifier.
	MaxSymbolLen = 15

	// NoCorrelation marks a best peer that was never found.
	NoCorrelation = -2.0
	// NoPeer is the symbol reported alongside NoCorrelation.
	NoPeer = "N/A"
)

var (
	ErrTooManyInstruments = errors.New("market: instrument table full")
	ErrInvalidSymbol      = errors.New("market: invalid instrument symbol")
	ErrMalformedTick      = errors.New("market: malformed tick")
)

// Trade is one accepted tick held in an instrument's window.
type Trade struct {
	EventTime       time.Time
	Price           float64
	Volume          float64
	ProcessingDelay time.Duration
}

// MovingAverage is the aggregate computed for one instrument once per cycle.
type MovingAverage struct {
	ComputedAt  time.Time
	MovingAvg   float64
	TotalVolume float64
	AvgDelay    time.Duration
}

// BestPeer is the most correlated other instrument found so far.
type BestPeer struct {
	Symbol             string
	Correlation        float64
	ComputedAt         time.Time
	ContributingMATime time.Time
}

// Found reports whether a finite correlation has ever been recorded.
func (p BestPeer) Found() bool {
	return p.Correlation != NoCorrelation
}

func noPeer() BestPeer {
	return BestPeer{Symbol: NoPeer, Correlation: NoCorrelation}
}

// Tick is a decoded trade event handed to the ingestion path.
type Tick struct {
	Symbol     string
	Price      float64
	Volume     float64
	EventTime  time.Time
	ReceivedAt time.Time
}

// Series is an immutable copy of one instrument's full moving-average history,
// taken under the store lock for lock-free correlation.
type Series struct {
	Index   int
	Symbol  string
	History []MovingAverage
}

// Values returns the moving-average prices, oldest first.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.History))
	for i, ma := range s.History {
		out[i] = ma.MovingAvg
	}
	return out
}

// InstrumentView is a read-only copy of an instrument's state.
type InstrumentView struct {
	Index      int
	Symbol     string
	TradeCount int
	History    []MovingAverage
	BestPeer   BestPeer
}
