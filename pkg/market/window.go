package market

import "time"

// TradeWindow is an arrival-ordered trade buffer with a hard capacity.
// When full it rejects new trades instead of evicting old ones; only Trim
// frees space.
type TradeWindow struct {
	trades   []Trade
	capacity int
}

func NewTradeWindow(capacity int) *TradeWindow {
	if capacity <= 0 {
		capacity = DefaultTradeCapacity
	}
	return &TradeWindow{capacity: capacity}
}

// Append adds t unless the window is full. It reports whether t was kept.
func (w *TradeWindow) Append(t Trade) bool {
	if len(w.trades) >= w.capacity {
		return false
	}
	w.trades = append(w.trades, t)
	return true
}

// Trim drops every trade with EventTime before cutoff, preserving order.
func (w *TradeWindow) Trim(cutoff time.Time) {
	kept := w.trades[:0]
	for _, t := range w.trades {
		if !t.EventTime.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	// clear the tail so dropped trades do not pin memory
	for i := len(kept); i < len(w.trades); i++ {
		w.trades[i] = Trade{}
	}
	w.trades = kept
}

func (w *TradeWindow) Len() int   { return len(w.trades) }
func (w *TradeWindow) Full() bool { return len(w.trades) >= w.capacity }

// snapshot copies the buffered trades, oldest first.
func (w *TradeWindow) snapshot() []Trade {
	out := make([]Trade, len(w.trades))
	copy(out, w.trades)
	return out
}
