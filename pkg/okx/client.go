// Package okx is a minimal OKX public websocket client for the tickers channel.
package okx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kasyap/okx-corr/pkg/logger"
)

const (
	DefaultURL               = "wss://ws.okx.com:8443/ws/v5/public"
	DefaultChannel           = "tickers"
	DefaultReconnectInterval = 10 * time.Second
	DefaultPingInterval      = 25 * time.Second
)

// Config configures the websocket client.
type Config struct {
	URL               string
	Symbols           []string
	Channel           string
	ReconnectInterval time.Duration
	PingInterval      time.Duration
	HandshakeTimeout  time.Duration
}

// Client streams ticker updates. After Connect, Run keeps the session alive,
// reconnecting at a fixed interval whenever the connection drops.
type Client struct {
	cfg Config
	log *slog.Logger

	// Callbacks
	onTicker     func(Ticker)
	onError      func(error)
	onConnection func(connected bool)

	// State
	mu          sync.RWMutex
	conn        *websocket.Conn
	isConnected bool
	writeMu     sync.Mutex
}

// NewClient creates a new WebSocket client
func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, log: logger.Component(log, "okx")}
}

// OnTicker sets the ticker callback. It runs on the read goroutine.
func (c *Client) OnTicker(callback func(Ticker)) { c.onTicker = callback }

// OnError sets the callback for decode and connection errors.
func (c *Client) OnError(callback func(error)) { c.onError = callback }

// OnConnectionChange sets the callback for connect and disconnect.
func (c *Client) OnConnectionChange(callback func(bool)) { c.onConnection = callback }

// Connect dials the endpoint and subscribes to every configured symbol.
func (c *Client) Connect(ctx context.Context) error {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	if err := c.sendJSON(subscribeRequest(c.cfg.Channel, c.cfg.Symbols)); err != nil {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	c.setConnected(true)
	c.log.Info("websocket connected", "url", c.cfg.URL, "symbols", len(c.cfg.Symbols))
	return nil
}

// Run reads until ctx is cancelled, reconnecting every ReconnectInterval
// after a failure. If Connect has not succeeded yet, Run dials first.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()
	for {
		conn := c.current()
		if conn == nil {
			c.log.Info("attempting to reconnect")
			if err := c.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Warn("reconnect attempt failed", "error", err)
				c.reportError(err)
				if !sleepCtx(ctx, c.cfg.ReconnectInterval) {
					return nil
				}
				continue
			}
			conn = c.current()
		}

		err := c.session(ctx, conn)
		c.setConnected(false)
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("websocket disconnected", "error", err, "retry_in", c.cfg.ReconnectInterval)
		c.reportError(err)
		if !sleepCtx(ctx, c.cfg.ReconnectInterval) {
			return nil
		}
	}
}

func (c *Client) current() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// session pumps one connection until it fails or ctx ends.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	go c.heartbeat(conn, done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(message, time.Now())
	}
}

// handleMessage processes incoming messages
func (c *Client) handleMessage(data []byte, receivedAt time.Time) {
	if string(data) == "pong" {
		return
	}
	frame, err := Decode(data, receivedAt)
	if err != nil {
		c.log.Debug("dropping malformed ticker data", "error", err)
		c.reportError(err)
	}

	switch frame.Event {
	case "":
	case "subscribe":
		c.log.Debug("subscribed", "channel", frame.Channel)
		return
	case "error":
		c.log.Error("websocket error event", "code", frame.Code, "msg", frame.Msg)
		c.reportError(fmt.Errorf("okx error %s: %s", frame.Code, frame.Msg))
		return
	default:
		c.log.Debug("websocket event", "event", frame.Event, "code", frame.Code)
		return
	}

	if c.onTicker == nil {
		return
	}
	for _, t := range frame.Tickers {
		c.onTicker(t)
	}
}

// heartbeat sends the text ping OKX expects on idle connections.
func (c *Client) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			c.writeMu.Unlock()
			if err != nil {
				c.log.Debug("heartbeat ping failed", "error", err)
			}
		}
	}
}

func (c *Client) sendJSON(msg interface{}) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	changed := c.isConnected != v
	c.isConnected = v
	c.mu.Unlock()
	if changed && c.onConnection != nil {
		c.onConnection(v)
	}
}

func (c *Client) reportError(err error) {
	if err != nil && c.onError != nil {
		c.onError(err)
	}
}

// Close closes the WebSocket connection (idempotent - safe to call multiple times)
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.setConnected(false)
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
