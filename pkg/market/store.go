package market

import (
	"fmt"
	"sync"
	"time"
)

// StoreConfig bounds the instrument table and its per-instrument buffers.
type StoreConfig struct {
	MaxInstruments int
	TradeCapacity  int
	HistorySize    int
	Window         time.Duration
}

// DefaultStoreConfig returns the production bounds.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		MaxInstruments: DefaultMaxInstruments,
		TradeCapacity:  DefaultTradeCapacity,
		HistorySize:    DefaultHistorySize,
		Window:         DefaultWindow,
	}
}

type instrument struct {
	index   int
	symbol  string
	window  *TradeWindow
	history *History
	best    BestPeer
}

func (in *instrument) view() InstrumentView {
	return InstrumentView{
		Index:      in.index,
		Symbol:     in.symbol,
		TradeCount: in.window.Len(),
		History:    in.history.Records(),
		BestPeer:   in.best,
	}
}

// SymbolAverage pairs a cycle's aggregate with the instrument it belongs to.
type SymbolAverage struct {
	Index   int
	Symbol  string
	Average MovingAverage
}

// Cycle is the outcome of one Store.Aggregate call.
type Cycle struct {
	At       time.Time
	Averages []SymbolAverage
	// Snapshot holds every instrument whose history is full, in first-seen order.
	Snapshot []Series
}

// Store owns every instrument's trade window, moving-average history and best
// peer. A single mutex serializes all access; instruments are created lazily
// in first-seen order and never removed.
type Store struct {
	mu          sync.Mutex
	cfg         StoreConfig
	now         func() time.Time
	instruments []*instrument
	bySymbol    map[string]*instrument
}

func NewStore(cfg StoreConfig) *Store {
	def := DefaultStoreConfig()
	if cfg.MaxInstruments <= 0 {
		cfg.MaxInstruments = def.MaxInstruments
	}
	if cfg.TradeCapacity <= 0 {
		cfg.TradeCapacity = def.TradeCapacity
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Store{
		cfg:      cfg,
		now:      time.Now,
		bySymbol: make(map[string]*instrument, cfg.MaxInstruments),
	}
}

func validSymbol(symbol string) bool {
	return symbol != "" && len(symbol) <= MaxSymbolLen
}

func (s *Store) getOrCreateLocked(symbol string) (*instrument, error) {
	if in, ok := s.bySymbol[symbol]; ok {
		return in, nil
	}
	if !validSymbol(symbol) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	if len(s.instruments) >= s.cfg.MaxInstruments {
		return nil, fmt.Errorf("%w: %d instruments, rejecting %q", ErrTooManyInstruments, len(s.instruments), symbol)
	}
	in := &instrument{
		index:   len(s.instruments),
		symbol:  symbol,
		window:  NewTradeWindow(s.cfg.TradeCapacity),
		history: NewHistory(s.cfg.HistorySize),
		best:    noPeer(),
	}
	s.instruments = append(s.instruments, in)
	s.bySymbol[symbol] = in
	return in, nil
}

// Register creates the instrument if needed. It is idempotent.
func (s *Store) Register(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.getOrCreateLocked(symbol)
	return err
}

// Append stores the tick in its instrument's window, creating the instrument
// on first sight. A full window drops the tick and returns accepted=false with
// no error.
func (s *Store) Append(t Tick) (trade Trade, accepted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := s.getOrCreateLocked(t.Symbol)
	if err != nil {
		return Trade{}, false, err
	}
	if in.window.Full() {
		return Trade{}, false, nil
	}

	trade = Trade{
		EventTime: t.EventTime,
		Price:     t.Price,
		Volume:    t.Volume,
	}
	trade.ProcessingDelay = s.now().Sub(t.ReceivedAt)
	in.window.Append(trade)
	return trade, true, nil
}

// Aggregate runs one moving-average cycle at now: every instrument's window
// is trimmed and aggregated, the result pushed into its history, and a
// snapshot of all full histories copied out, all under one lock hold.
func (s *Store) Aggregate(now time.Time) Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Cycle{
		At:       now,
		Averages: make([]SymbolAverage, 0, len(s.instruments)),
	}
	for _, in := range s.instruments {
		ma := Aggregate(in.window, now, s.cfg.Window)
		in.history.Push(ma)
		c.Averages = append(c.Averages, SymbolAverage{Index: in.index, Symbol: in.symbol, Average: ma})
	}
	for _, in := range s.instruments {
		if !in.history.Full() {
			continue
		}
		c.Snapshot = append(c.Snapshot, Series{
			Index:   in.index,
			Symbol:  in.symbol,
			History: in.history.Records(),
		})
	}
	return c
}

// ApplyPeer records peer as the instrument's best peer if it carries a finite
// correlation, and returns the instrument's best peer after the update.
func (s *Store) ApplyPeer(index int, peer BestPeer) (BestPeer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.instruments) {
		return BestPeer{}, fmt.Errorf("market: no instrument at index %d", index)
	}
	in := s.instruments[index]
	if peer.Found() {
		in.best = peer
	}
	return in.best, nil
}

// Lookup returns a copy of one instrument's state.
func (s *Store) Lookup(symbol string) (InstrumentView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.bySymbol[symbol]
	if !ok {
		return InstrumentView{}, false
	}
	return in.view(), true
}

// Instruments returns copies of all instruments in first-seen order.
func (s *Store) Instruments() []InstrumentView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InstrumentView, len(s.instruments))
	for i, in := range s.instruments {
		out[i] = in.view()
	}
	return out
}

// Len returns the number of known instruments.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instruments)
}

// Stats is a cheap summary used by the heartbeat.
type Stats struct {
	Instruments int
	Trades      int
	Eligible    int
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Instruments: len(s.instruments)}
	for _, in := range s.instruments {
		st.Trades += in.window.Len()
		if in.history.Full() {
			st.Eligible++
		}
	}
	return st
}
