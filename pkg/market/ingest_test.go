package market

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedTrade struct {
	symbol string
	trade  Trade
}

type fakeRecorder struct {
	mu     sync.Mutex
	trades []recordedTrade
}

func (f *fakeRecorder) RecordTrade(symbol string, t Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, recordedTrade{symbol, t})
}

type countingObserver struct {
	mu       sync.Mutex
	accepted int
	dropped  map[string]int
}

func (c *countingObserver) TradeAccepted(string) {
	c.mu.Lock()
	c.accepted++
	c.mu.Unlock()
}

func (c *countingObserver) TradeDropped(reason string) {
	c.mu.Lock()
	if c.dropped == nil {
		c.dropped = map[string]int{}
	}
	c.dropped[reason]++
	c.mu.Unlock()
}

func TestIngestor_RecordsAcceptedTradesOnly(t *testing.T) {
	store := NewStore(StoreConfig{TradeCapacity: 1})
	rec := &fakeRecorder{}
	obs := &countingObserver{}
	in := NewIngestor(store, rec, obs, nil)

	require.NoError(t, in.Ingest(tick("BTC-USDT", 0, 100, 1)))
	require.NoError(t, in.Ingest(tick("BTC-USDT", 1, 101, 1)))

	require.Len(t, rec.trades, 1)
	assert.Equal(t, "BTC-USDT", rec.trades[0].symbol)
	assert.Equal(t, 100.0, rec.trades[0].trade.Price)
	assert.Equal(t, 1, obs.accepted)
	assert.Equal(t, 1, obs.dropped[DropWindowFull])
}

func TestIngestor_MalformedTick(t *testing.T) {
	store := NewStore(DefaultStoreConfig())
	obs := &countingObserver{}
	in := NewIngestor(store, nil, obs, nil)

	cases := map[string]Tick{
		"empty symbol": tick("", 0, 1, 1),
		"nan price":    tick("A", 0, math.NaN(), 1),
		"inf volume":   tick("A", 0, 1, math.Inf(1)),
		"no time":      {Symbol: "A", Price: 1, Volume: 1},
	}
	for name, tk := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, in.Ingest(tk), ErrMalformedTick)
		})
	}
	assert.Zero(t, store.Len())
	assert.Equal(t, len(cases), obs.dropped[DropMalformed])
}

func TestIngestor_CapacityErrorSurfaced(t *testing.T) {
	store := NewStore(StoreConfig{MaxInstruments: 2})
	obs := &countingObserver{}
	in := NewIngestor(store, nil, obs, nil)

	for i := 0; i < 2; i++ {
		require.NoError(t, in.Ingest(tick(fmt.Sprintf("S%d", i), 0, 1, 1)))
	}
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, in.Ingest(tick("S9", 0, 1, 1)), ErrTooManyInstruments)
	}
	assert.Equal(t, 3, obs.dropped[DropCapacity])
}

func TestIngestor_ConcurrentWithAggregate(t *testing.T) {
	store := NewStore(DefaultStoreConfig())
	in := NewIngestor(store, &fakeRecorder{}, nil, nil)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = in.Ingest(tick(fmt.Sprintf("S%d", g), float64(i), 1, 1))
			}
		}(g)
	}
	for i := 0; i < 20; i++ {
		store.Aggregate(at(600))
	}
	wg.Wait()

	st := store.Stats()
	assert.Equal(t, 4, st.Instruments)
	assert.Equal(t, 2000, st.Trades)
}
