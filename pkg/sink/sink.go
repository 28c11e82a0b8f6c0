// Package sink writes the engine's record streams: per-instrument
// transaction, moving-average and correlation streams plus the global timing
// and CPU idle streams.
package sink

import (
	"strconv"
	"time"

	"github.com/kasyap/okx-corr/pkg/engine"
	"github.com/kasyap/okx-corr/pkg/market"
)

// TimestampLayout is the second-precision local time used in every stream.
const TimestampLayout = "2006-01-02 15:04:05"

// Recorder is implemented by every sink.
type Recorder interface {
	market.TradeRecorder
	engine.Recorder
	RecordCPUIdle(at time.Time, idlePercent float64)
}

var (
	_ Recorder = (*Files)(nil)
	_ Recorder = (*Console)(nil)
	_ Recorder = Multi(nil)
)

var (
	TransactionHeader   = []string{"Timestamp", "Price", "Volume", "ProcessingDelay"}
	MovingAverageHeader = []string{"Timestamp", "MovingAvg", "TotalVolume", "AvgProcessingDelay"}
	CorrelationHeader   = []string{"Timestamp", "OtherSymbol", "Correlation", "MaxCorrMATime"}
	TimingHeader        = []string{"Timestamp", "TimeDiff"}
	CPUIdleHeader       = []string{"Timestamp", "IdlePercent"}
)

// FormatTimestamp renders t in local time; the zero time renders as the Unix epoch.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Unix(0, 0)
	}
	return t.Local().Format(TimestampLayout)
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func TransactionRow(t market.Trade) []string {
	return []string{
		FormatTimestamp(t.EventTime),
		fixed(t.Price, 2),
		fixed(t.Volume, 4),
		fixed(t.ProcessingDelay.Seconds(), 9),
	}
}

func MovingAverageRow(ma market.MovingAverage) []string {
	return []string{
		FormatTimestamp(ma.ComputedAt),
		fixed(ma.MovingAvg, 2),
		fixed(ma.TotalVolume, 4),
		fixed(ma.AvgDelay.Seconds(), 9),
	}
}

func CorrelationRow(at time.Time, peer market.BestPeer) []string {
	return []string{
		FormatTimestamp(at),
		peer.Symbol,
		fixed(peer.Correlation, 4),
		FormatTimestamp(peer.ContributingMATime),
	}
}

func TimingRow(at time.Time, drift time.Duration) []string {
	return []string{FormatTimestamp(at), fixed(drift.Seconds(), 3)}
}

func CPUIdleRow(at time.Time, idlePercent float64) []string {
	return []string{FormatTimestamp(at), fixed(idlePercent, 3)}
}

// Multi fans every record out to each recorder in order.
type Multi []Recorder

func (m Multi) RecordTrade(symbol string, t market.Trade) {
	for _, r := range m {
		r.RecordTrade(symbol, t)
	}
}

func (m Multi) RecordMovingAverage(symbol string, ma market.MovingAverage) {
	for _, r := range m {
		r.RecordMovingAverage(symbol, ma)
	}
}

func (m Multi) RecordCorrelation(symbol string, at time.Time, peer market.BestPeer) {
	for _, r := range m {
		r.RecordCorrelation(symbol, at, peer)
	}
}

func (m Multi) RecordTiming(at time.Time, drift time.Duration) {
	for _, r := range m {
		r.RecordTiming(at, drift)
	}
}

func (m Multi) RecordCPUIdle(at time.Time, idlePercent float64) {
	for _, r := range m {
		r.RecordCPUIdle(at, idlePercent)
	}
}
