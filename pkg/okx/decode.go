package okx

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedMessage = errors.New("okx: malformed message")
	ErrNotConnected     = errors.New("okx: websocket not connected")
)

// Decode parses one text frame. Malformed data elements are skipped and
// reported through the returned error; well-formed elements are still
// returned in the frame.
func Decode(raw []byte, receivedAt time.Time) (Frame, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	f := Frame{Event: msg.Event, Code: msg.Code, Msg: msg.Msg}
	if msg.Arg != nil {
		f.Channel = msg.Arg.Channel
	}
	if f.Event != "" || len(msg.Data) == 0 {
		return f, nil
	}

	var errs []error
	for i, el := range msg.Data {
		t, err := decodeTicker(el, receivedAt)
		if err != nil {
			errs = append(errs, fmt.Errorf("data[%d]: %w", i, err))
			continue
		}
		f.Tickers = append(f.Tickers, t)
	}
	return f, errors.Join(errs...)
}

func decodeTicker(raw json.RawMessage, receivedAt time.Time) (Ticker, error) {
	var w wireTicker
	if err := json.Unmarshal(raw, &w); err != nil {
		return Ticker{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	vol := w.Vol
	if vol == nil {
		vol = w.LastSz
	}
	if w.InstID == nil || *w.InstID == "" || w.Last == nil || vol == nil {
		return Ticker{}, fmt.Errorf("%w: missing instId, last or volume", ErrMalformedMessage)
	}

	last, err := decimal.NewFromString(*w.Last)
	if err != nil {
		return Ticker{}, fmt.Errorf("%w: last %q: %v", ErrMalformedMessage, *w.Last, err)
	}
	size, err := decimal.NewFromString(*vol)
	if err != nil {
		return Ticker{}, fmt.Errorf("%w: volume %q: %v", ErrMalformedMessage, *vol, err)
	}

	return Ticker{
		InstID:     *w.InstID,
		Last:       last.InexactFloat64(),
		Volume:     size.InexactFloat64(),
		ReceivedAt: receivedAt,
	}, nil
}

func subscribeRequest(channel string, symbols []string) request {
	req := request{Op: "subscribe", Args: make([]subscribeArg, 0, len(symbols))}
	for _, s := range symbols {
		req.Args = append(req.Args, subscribeArg{Channel: channel, InstID: s})
	}
	return req
}
