package coindcx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Engine.IO / Socket.IO packet prefixes used by the CoinDCX stream.
const (
	packetOpen        = "0"
	packetPing        = "2"
	packetPong        = "3"
	packetConnect     = "40"
	packetDisconnect  = "41"
	packetEvent       = "42"
	defaultReconnect  = 3 * time.Second
	defaultPingPeriod = 25 * time.Second
)

// EventHandler receives the event name and its payload. A payload that was
// sent as a JSON string is passed already unquoted.
type EventHandler func(event string, payload []byte)

// WSClient is a minimal Socket.IO client over a raw WebSocket. It joins the
// configured channels after every (re)connect and forwards event frames.
type WSClient struct {
	url            string
	channels       []string
	eio4           bool
	clientPing     bool
	pingInterval   time.Duration
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	handler        EventHandler
	logger         *zap.Logger

	mu   sync.Mutex // serializes writes; gorilla allows a single concurrent writer
	conn *websocket.Conn
}

// NewWSClient creates a client for rawURL that will join channels on connect.
func NewWSClient(rawURL string, channels []string, logger *zap.Logger) *WSClient {
	eio4 := false
	if u, err := url.Parse(rawURL); err == nil {
		eio4 = u.Query().Get("EIO") == "4"
	}
	return &WSClient{
		url:            rawURL,
		channels:       channels,
		eio4:           eio4,
		pingInterval:   defaultPingPeriod,
		reconnectDelay: defaultReconnect,
		dialer:         websocket.DefaultDialer,
		logger:         logger,
	}
}

// SetMessageHandler sets the function to handle incoming events.
func (c *WSClient) SetMessageHandler(h EventHandler) {
	c.handler = h
}

// SetClientPing makes the client send its own ping every interval.
// Engine.IO v3 servers expect the client to ping.
func (c *WSClient) SetClientPing(enabled bool, interval time.Duration) {
	c.clientPing = enabled
	if interval > 0 {
		c.pingInterval = interval
	}
}

// Run connects and listens until ctx is cancelled, reconnecting after every failure.
func (c *WSClient) Run(ctx context.Context) error {
	for {
		if err := c.connect(ctx); err != nil {
			c.logger.Error("Failed to connect to WebSocket", zap.String("url", c.url), zap.Error(err))
		} else {
			c.logger.Info("WebSocket connected", zap.String("url", c.url))
			if err := c.listen(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("WebSocket read error", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
			c.logger.Warn("Retrying reconnect...")
		}
	}
}

func (c *WSClient) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// listen reads frames until the connection fails, the server disconnects
// the namespace, or ctx is cancelled.
func (c *WSClient) listen(ctx context.Context) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := c.conn
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()
	if c.clientPing {
		go c.pingLoop(connCtx)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if done := c.handlePacket(msg); done {
			return fmt.Errorf("server closed socket.io namespace")
		}
	}
}

func (c *WSClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(packetPing); err != nil {
				c.logger.Warn("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// handlePacket dispatches a single frame. It reports true when the
// connection should be dropped and re-established.
func (c *WSClient) handlePacket(msg []byte) bool {
	s := string(msg)
	switch {
	case bytes.HasPrefix(msg, []byte(packetEvent)):
		c.handleEvent(msg[len(packetEvent):])
	case s == packetConnect || bytes.HasPrefix(msg, []byte(packetConnect+"{")):
		c.join()
	case s == packetDisconnect:
		c.logger.Warn("Socket.IO namespace disconnected")
		return true
	case s == packetPing:
		if err := c.write(packetPong); err != nil {
			c.logger.Warn("Failed to send pong", zap.Error(err))
		}
	case s == packetPong:
	case bytes.HasPrefix(msg, []byte(packetOpen)):
		if c.eio4 {
			if err := c.write(packetConnect); err != nil {
				c.logger.Warn("Failed to open namespace", zap.Error(err))
			}
		}
	}
	return false
}

func (c *WSClient) join() {
	for _, ch := range c.channels {
		frame, err := json.Marshal([]any{"join", map[string]string{"channelName": ch}})
		if err != nil {
			continue
		}
		if err := c.write(packetEvent + string(frame)); err != nil {
			c.logger.Error("Failed to send subscription", zap.String("channel", ch), zap.Error(err))
			return
		}
		c.logger.Info("Joined channel", zap.String("channel", ch))
	}
}

func (c *WSClient) handleEvent(body []byte) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil || len(parts) == 0 {
		c.logger.Warn("failed to parse event frame", zap.Error(err))
		return
	}
	var event string
	if err := json.Unmarshal(parts[0], &event); err != nil {
		c.logger.Warn("failed to parse event name", zap.Error(err))
		return
	}
	var payload []byte
	if len(parts) > 1 {
		payload = unquote(parts[1])
	}
	if c.handler != nil {
		c.handler(event, payload)
	}
}

func (c *WSClient) write(packet string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(packet))
}

// unquote returns the contents of a JSON string, or raw unchanged.
func unquote(raw json.RawMessage) []byte {
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	return []byte(s)
}

// DecodePrices extracts pair -> mark price from a current-prices payload.
// The payload is either {"prices": {...}} or {"data": "<json of the same>"}.
func DecodePrices(payload []byte) (map[string]float64, error) {
	var envelope struct {
		Prices map[string]struct {
			MarkPrice *Float `json:"mp"`
		} `json:"prices"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if envelope.Prices == nil && len(envelope.Data) > 0 {
		return DecodePrices(unquote(envelope.Data))
	}

	prices := make(map[string]float64, len(envelope.Prices))
	for pair, p := range envelope.Prices {
		if mp := p.MarkPrice.Value(); mp > 0 {
			prices[pair] = mp
		}
	}
	return prices, nil
}
