package engine

import (
	"context"
	"time"
)

// Clock abstracts wall time so the scheduler can be driven in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Drift is how far t lies past the most recent period boundary.
func Drift(t time.Time, period time.Duration) time.Duration {
	return t.Sub(t.Truncate(period))
}

// NextBoundary is the first period boundary at or after t.
func NextBoundary(t time.Time, period time.Duration) time.Time {
	b := t.Truncate(period)
	if b.Equal(t) {
		return t
	}
	return b.Add(period)
}
