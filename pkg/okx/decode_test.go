package okx

import (
	"errors"
	"testing"
	"time"
)

func TestDecode_TickersFrame(t *testing.T) {
	now := time.Unix(1700000000, 0)
	raw := `{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[
		{"instId":"BTC-USDT","last":"43250.5","lastSz":"0.01","vol24h":"1200"},
		{"instId":"ETH-USDT","last":"2250.12","vol":"3.5","lastSz":"0.2"}]}`

	f, err := Decode([]byte(raw), now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Channel != "tickers" {
		t.Fatalf("channel = %q", f.Channel)
	}
	if len(f.Tickers) != 2 {
		t.Fatalf("expected 2 tickers, got %d", len(f.Tickers))
	}

	btc := f.Tickers[0]
	if btc.InstID != "BTC-USDT" || btc.Last != 43250.5 || btc.Volume != 0.01 {
		t.Fatalf("unexpected BTC ticker: %+v", btc)
	}
	if !btc.ReceivedAt.Equal(now) {
		t.Fatalf("received at = %v, want %v", btc.ReceivedAt, now)
	}
	// vol takes precedence over lastSz
	if f.Tickers[1].Volume != 3.5 {
		t.Fatalf("ETH volume = %v, want 3.5", f.Tickers[1].Volume)
	}
}

func TestDecode_EventFrame(t *testing.T) {
	f, err := Decode([]byte(`{"event":"subscribe","arg":{"channel":"tickers","instId":"SOL-USDT"},"connId":"a1"}`), time.Now())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Event != "subscribe" || len(f.Tickers) != 0 {
		t.Fatalf("unexpected frame: %+v", f)
	}

	f, err = Decode([]byte(`{"event":"error","code":"60012","msg":"Invalid request"}`), time.Now())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Code != "60012" || f.Msg != "Invalid request" {
		t.Fatalf("unexpected error frame: %+v", f)
	}
}

func TestDecode_MalformedElementsSkipped(t *testing.T) {
	raw := `{"data":[
		{"instId":"BTC-USDT","last":"100","vol":"1"},
		{"instId":"ETH-USDT","vol":"1"},
		{"instId":"XRP-USDT","last":"abc","vol":"1"},
		{"instId":"SOL-USDT","last":42,"vol":"1"},
		{"last":"1","vol":"1"}]}`

	f, err := Decode([]byte(raw), time.Now())
	if !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
	if len(f.Tickers) != 1 || f.Tickers[0].InstID != "BTC-USDT" {
		t.Fatalf("expected only BTC ticker, got %+v", f.Tickers)
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"data":`), time.Now()); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestSubscribeRequest(t *testing.T) {
	req := subscribeRequest("tickers", []string{"BTC-USDT", "ETH-USDT"})
	if req.Op != "subscribe" || len(req.Args) != 2 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Args[1] != (subscribeArg{Channel: "tickers", InstID: "ETH-USDT"}) {
		t.Fatalf("unexpected arg: %+v", req.Args[1])
	}
}
