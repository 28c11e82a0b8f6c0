package market

import "time"

// Aggregate trims w to trades at or after now-span and returns the aggregate
// of what remains. An empty window yields a zero record stamped with now.
func Aggregate(w *TradeWindow, now time.Time, span time.Duration) MovingAverage {
	w.Trim(now.Add(-span))

	ma := MovingAverage{ComputedAt: now}
	n := w.Len()
	if n == 0 {
		return ma
	}

	var sumPrice, sumVolume float64
	var sumDelay time.Duration
	for _, t := range w.trades {
		sumPrice += t.Price
		sumVolume += t.Volume
		sumDelay += t.ProcessingDelay
	}
	ma.MovingAvg = sumPrice / float64(n)
	ma.TotalVolume = sumVolume
	ma.AvgDelay = sumDelay / time.Duration(n)
	return ma
}
