package correlation

import (
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kasyap/okx-corr/pkg/logger"
	"github.com/kasyap/okx-corr/pkg/market"
)

// Result is one instrument's outcome for a correlation round. Peer carries
// market.NoCorrelation when no peer produced a finite coefficient.
type Result struct {
	Index  int
	Symbol string
	Peer   market.BestPeer
}

// Found reports whether a finite correlation was found this round.
func (r Result) Found() bool { return r.Peer.Found() }

// PublishFunc is called once per instrument from the worker that computed it.
type PublishFunc func(Result)

// Engine runs one correlation task per snapshot entry, all in parallel, and
// returns only after every task has finished.
type Engine struct {
	log *slog.Logger
}

func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: logger.Component(log, "correlation")}
}

// Run computes the best peer for every entry of snapshot at cycle time now.
// publish, if non-nil, is invoked by each worker with its result. Results are
// returned in snapshot order once every worker has finished; a round is never
// cut short. Fewer than two entries is a no-op.
func (e *Engine) Run(snapshot []market.Series, now time.Time, publish PublishFunc) []Result {
	if len(snapshot) < 2 {
		return nil
	}

	values := make([][]float64, len(snapshot))
	for i, s := range snapshot {
		values[i] = s.Values()
	}

	results := make([]Result, len(snapshot))
	var g errgroup.Group
	g.SetLimit(len(snapshot))

	for i := range snapshot {
		g.Go(func() error {
			r := BestPeer(snapshot, values, i, now)
			results[i] = r
			if publish != nil {
				publish(r)
			}
			return nil
		})
	}
	_ = g.Wait()
	e.log.Debug("correlation round complete", "instruments", len(snapshot), "at", now)
	return results
}

// BestPeer scans every other entry of snapshot in order and keeps the first
// strictly greatest finite correlation with entry i. values[j] must be
// snapshot[j].Values().
func BestPeer(snapshot []market.Series, values [][]float64, i int, now time.Time) Result {
	self := snapshot[i]
	best := market.BestPeer{
		Symbol:      market.NoPeer,
		Correlation: market.NoCorrelation,
		ComputedAt:  now,
	}

	for j := range snapshot {
		if j == i {
			continue
		}
		r := Pearson(values[i], values[j])
		if math.IsNaN(r) || math.IsInf(r, 0) || r <= best.Correlation {
			continue
		}
		best.Correlation = r
		best.Symbol = snapshot[j].Symbol
		if k := PeakContribution(values[i], values[j]); k >= 0 {
			best.ContributingMATime = self.History[k].ComputedAt
		}
	}

	return Result{Index: self.Index, Symbol: self.Symbol, Peer: best}
}
