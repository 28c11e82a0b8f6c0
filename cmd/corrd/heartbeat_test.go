package main

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kasyap/okx-corr/pkg/market"
)

func TestLogHeartbeatFormatting(t *testing.T) {
	tracker := NewStatusTracker()
	tracker.Record(StatusSnapshot{Instruments: 8, Trades: 100, Eligible: 2, Connected: true})
	tracker.Record(StatusSnapshot{Instruments: 8, Trades: 340, Eligible: 5, Connected: true})

	msg := formatHeartbeat(tracker.Report())

	if !strings.Contains(msg, "Instruments: 8") {
		t.Errorf("Expected instrument count in message, got: %s", msg)
	}
	if !strings.Contains(msg, "Trades: 340 (+240)") {
		t.Errorf("Expected trade count and delta in message, got: %s", msg)
	}
	if !strings.Contains(msg, "Eligible: 5") {
		t.Errorf("Expected eligible count in message, got: %s", msg)
	}
	if !strings.Contains(msg, "WS: up") {
		t.Errorf("Expected connection state in message, got: %s", msg)
	}
}

func TestStatusTrackerDeltaFromPrevious(t *testing.T) {
	tracker := NewStatusTracker()
	for i := 0; i < 5; i++ {
		tracker.Record(StatusSnapshot{Trades: i * 10})
	}
	stats := tracker.Report()
	if stats["samples"] != 5 {
		t.Fatalf("expected 5 samples, got %v", stats["samples"])
	}
	if stats["trades"] != 40 || stats["trades_delta"] != 10 {
		t.Fatalf("unexpected report: %v", stats)
	}
	if msg := formatHeartbeat(stats); !strings.Contains(msg, "WS: down") {
		t.Fatalf("expected WS down, got %s", msg)
	}
}

type fixedStats struct{ calls atomic.Int32 }

func (f *fixedStats) Stats() market.Stats {
	f.calls.Add(1)
	return market.Stats{Instruments: 2, Trades: 10, Eligible: 1}
}

func TestRunHeartbeat(t *testing.T) {
	src := &fixedStats{}
	tracker := NewStatusTracker()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runHeartbeat(ctx, 5*time.Millisecond, src, func() bool { return true }, tracker, false)
	}()

	deadline := time.After(2 * time.Second)
	for src.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("heartbeat did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("runHeartbeat returned %v", err)
	}
	if got := tracker.Report()["instruments"]; got != 2 {
		t.Fatalf("expected 2 instruments, got %v", got)
	}
}
