package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kasyap/okx-corr/pkg/logger"
	"github.com/kasyap/okx-corr/pkg/market"
)

type StatusSnapshot struct {
	Timestamp   time.Time
	Instruments int
	Trades      int
	Eligible    int
	Connected   bool
}

// StatusTracker keeps the latest heartbeat sample and the one before it, so
// each line can show what changed since the previous one.
type StatusTracker struct {
	mu      sync.RWMutex
	last    StatusSnapshot
	prev    StatusSnapshot
	samples int
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

func (st *StatusTracker) Record(s StatusSnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.prev, st.last = st.last, s
	st.samples++
}

func (st *StatusTracker) Report() map[string]interface{} {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return map[string]interface{}{
		"instruments":    st.last.Instruments,
		"trades":         st.last.Trades,
		"trades_delta":   st.last.Trades - st.prev.Trades,
		"eligible":       st.last.Eligible,
		"ws_connected":   st.last.Connected,
		"last_timestamp": st.last.Timestamp,
		"samples":        st.samples,
	}
}

func formatHeartbeat(stats map[string]interface{}) string {
	ws := "down"
	if up, _ := stats["ws_connected"].(bool); up {
		ws = "up"
	}
	return fmt.Sprintf("Instruments: %v | Trades: %v (%+d) | Eligible: %v | WS: %s",
		stats["instruments"], stats["trades"], stats["trades_delta"], stats["eligible"], ws)
}

type statusSource interface {
	Stats() market.Stats
}

// runHeartbeat samples the store every interval and logs one status line.
func runHeartbeat(ctx context.Context, interval time.Duration, store statusSource, connected func() bool,
	tracker *StatusTracker, console bool) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s := store.Stats()
			tracker.Record(StatusSnapshot{
				Timestamp:   now,
				Instruments: s.Instruments,
				Trades:      s.Trades,
				Eligible:    s.Eligible,
				Connected:   connected(),
			})
			stats := tracker.Report()
			slog.Info("heartbeat",
				"instruments", stats["instruments"],
				"trades", stats["trades"],
				"eligible", stats["eligible"],
				"ws_connected", stats["ws_connected"])
			if console {
				logger.ConsoleLog("INFO", formatHeartbeat(stats))
			}
		}
	}
}
