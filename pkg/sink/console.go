package sink

import (
	"time"

	"github.com/kasyap/okx-corr/pkg/logger"
	"github.com/kasyap/okx-corr/pkg/market"
)

// Console echoes records as colored human-readable lines.
type Console struct {
	out *logger.Console
}

func NewConsole(out *logger.Console) *Console {
	if out == nil {
		out = logger.NewConsole(nil)
	}
	return &Console{out: out}
}

func (c *Console) RecordTrade(symbol string, t market.Trade) {
	c.out.Tagged(logger.ColorYellow, "Transaction", "%s - Price=%.2f, Vol=%.4f, Processing Delay=%.6f sec",
		symbol, t.Price, t.Volume, t.ProcessingDelay.Seconds())
}

func (c *Console) RecordMovingAverage(symbol string, ma market.MovingAverage) {
	c.out.Tagged(logger.ColorGreen, "MovingAvg", "%s - Avg=%.2f, Vol=%.4f, Avg Delay=%.9f sec",
		symbol, ma.MovingAvg, ma.TotalVolume, ma.AvgDelay.Seconds())
}

func (c *Console) RecordCorrelation(symbol string, _ time.Time, peer market.BestPeer) {
	c.out.Tagged(logger.ColorBrightCyan, "Correlation", "%s - Peer=%s, Corr=%.4f, MA Time=%s",
		symbol, peer.Symbol, peer.Correlation, FormatTimestamp(peer.ContributingMATime))
}

func (c *Console) RecordTiming(_ time.Time, drift time.Duration) {
	c.out.Tagged(logger.ColorBlue, "Timing", "Scheduled vs Actual diff: %.3f sec", drift.Seconds())
}

func (c *Console) RecordCPUIdle(time.Time, float64) {}
