package okx

import (
	"encoding/json"
	"time"
)

// Ticker is one decoded element of a tickers channel push.
type Ticker struct {
	InstID     string
	Last       float64
	Volume     float64
	ReceivedAt time.Time
}

// Frame is a decoded websocket text frame. Event frames (subscribe, error)
// carry no tickers.
type Frame struct {
	Event   string
	Code    string
	Msg     string
	Channel string
	Tickers []Ticker
}

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type request struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type wireMessage struct {
	Event string            `json:"event"`
	Code  string            `json:"code"`
	Msg   string            `json:"msg"`
	Arg   *subscribeArg     `json:"arg"`
	Data  []json.RawMessage `json:"data"`
}

// wireTicker fields are pointers so absent and non-string values are distinguishable.
type wireTicker struct {
	InstID *string `json:"instId"`
	Last   *string `json:"last"`
	Vol    *string `json:"vol"`
	LastSz *string `json:"lastSz"`
}
