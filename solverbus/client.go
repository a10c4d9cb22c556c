// Package solverbus maintains the persistent connection to the solver
// relay and turns its events into quote lifecycle decisions.
package solverbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ClipFinance/intents-solver/common/errors"
	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const reconnectDelay = 5 * time.Second

// Handler consumes the two event kinds delivered over the bus.
type Handler interface {
	HandleQuoteRequest(req *types.QuoteRequest)
	HandleQuoteStatus(event *types.QuoteStatusEvent)
}

// Status describes the bus connection, for the observability surface.
type Status struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	URL       string `json:"url"`
}

type rpcMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int64           `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type rpcRequest struct {
	Jsonrpc string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type eventParams struct {
	Subscription string          `json:"subscription"`
	Data         json.RawMessage `json:"data"`
}

// Client is a JSON-RPC-over-WebSocket client for the solver relay. It
// subscribes to quote and quote_status events on connect and keeps a
// single pending reconnect timer so repeated failures never stack dials.
type Client struct {
	logger  *logrus.Logger
	url     string
	enabled bool
	handler Handler
	dialer  *websocket.Dialer

	mu             sync.Mutex
	conn           *websocket.Conn
	reconnectTimer *time.Timer
	closed         bool
}

// NewClient creates a bus client. The handler receives all routed events;
// it runs on the read loop goroutine.
func NewClient(url string, enabled bool, handler Handler, logger *logrus.Logger) *Client {
	return &Client{
		logger:  logger,
		url:     url,
		enabled: enabled,
		handler: handler,
		dialer:  websocket.DefaultDialer,
	}
}

// Start connects to the bus. A disabled client logs and returns without
// dialing.
func (c *Client) Start() {
	c.mu.Lock()
	enabled := c.enabled
	c.mu.Unlock()

	if !enabled {
		c.logger.Info("Solver bus is disabled")
		return
	}
	c.logger.WithField("url", c.url).Info("Solver bus enabled, connecting")
	c.connect()
}

// Stop cancels any pending reconnect and closes the connection.
func (c *Client) Stop() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// GetStatus reports the connection state.
func (c *Client) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Enabled:   c.enabled,
		Connected: c.conn != nil,
		URL:       c.url,
	}
}

// Reconnect drops the current connection and dials again immediately.
// Works even when the client was configured disabled, so an operator can
// bring the bus up at runtime.
func (c *Client) Reconnect() {
	c.logger.Info("Manual bus reconnection triggered")

	c.mu.Lock()
	c.closed = false
	c.enabled = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.connect()
}

func (c *Client) connect() {
	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		c.logger.WithError(err).Error("Failed to connect to solver bus")
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("Connected to solver bus")
	c.subscribe()

	go c.readLoop(conn)
}

// subscribe registers for quote and quote_status events.
func (c *Client) subscribe() {
	now := time.Now().UnixMilli()

	if err := c.send(&rpcRequest{
		Jsonrpc: "2.0",
		ID:      now,
		Method:  "subscribe",
		Params:  []string{"quote"},
	}); err != nil {
		c.logger.WithError(err).Warn("Failed to subscribe to quote events")
		return
	}
	c.logger.Info("Subscribed to quote events")

	if err := c.send(&rpcRequest{
		Jsonrpc: "2.0",
		ID:      now + 1,
		Method:  "subscribe",
		Params:  []string{"quote_status"},
	}); err != nil {
		c.logger.WithError(err).Warn("Failed to subscribe to quote_status events")
		return
	}
	c.logger.Info("Subscribed to quote_status events")
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.conn != conn
			if !stale {
				c.conn = nil
			}
			closed := c.closed
			c.mu.Unlock()

			// A connection replaced by Reconnect exits silently.
			if stale || closed {
				return
			}

			c.logger.WithError(err).Warn("Solver bus connection closed, reconnecting")
			c.scheduleReconnect()
			return
		}

		c.handleMessage(data)
	}
}

// handleMessage routes inbound frames. Subscription events carry no type
// tag, so routing goes by payload shape: a quote_id with asset
// identifiers is a quote request, a status field is a lifecycle event.
func (c *Client) handleMessage(data []byte) {
	var message rpcMessage
	if err := json.Unmarshal(data, &message); err != nil {
		c.logger.WithError(err).Warn("Failed to parse bus message")
		return
	}

	switch {
	case message.Method == "event" && message.Params != nil:
		var params eventParams
		if err := json.Unmarshal(message.Params, &params); err != nil {
			c.logger.WithError(err).Warn("Failed to parse bus event")
			return
		}
		c.routeEvent(params.Subscription, params.Data)

	case message.Result != nil:
		c.logger.WithField("result", string(message.Result)).Info("Subscription confirmed")

	case message.Error != nil:
		c.logger.WithField("error", string(message.Error)).Error("Solver bus error")

	default:
		c.logger.WithField("message", string(data)).Debug("Unknown bus message")
	}
}

func (c *Client) routeEvent(subscription string, data json.RawMessage) {
	var probe struct {
		QuoteID string `json:"quote_id"`
		AssetIn string `json:"defuse_asset_identifier_in"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		c.logger.WithError(err).Warn("Failed to probe bus event payload")
		return
	}

	switch {
	case probe.QuoteID != "" && probe.AssetIn != "":
		var req types.QuoteRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.logger.WithError(err).Warn("Failed to parse quote request")
			return
		}
		req.Subscription = subscription
		c.handler.HandleQuoteRequest(&req)

	case probe.Status != "":
		var event types.QuoteStatusEvent
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.WithError(err).Warn("Failed to parse quote status event")
			return
		}
		event.Subscription = subscription
		c.handler.HandleQuoteStatus(&event)

	default:
		c.logger.WithField("data", string(data)).Debug("Unroutable bus event")
	}
}

// SendQuoteResponse submits a signed quote over the respond_quote method.
func (c *Client) SendQuoteResponse(quote *types.SignedQuote) error {
	return c.send(&rpcRequest{
		Jsonrpc: "2.0",
		ID:      time.Now().UnixMilli(),
		Method:  "respond_quote",
		Params:  quote,
	})
}

// send writes one JSON frame. gorilla/websocket allows a single
// concurrent writer, so writes go through the client mutex.
func (c *Client) send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.ErrBusNotConnected
	}
	return c.conn.WriteJSON(message)
}

// scheduleReconnect arms the reconnect timer unless one is already
// pending.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.reconnectTimer != nil {
		return
	}
	c.reconnectTimer = time.AfterFunc(reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closed := c.closed
		c.mu.Unlock()

		if !closed {
			c.connect()
		}
	})
}
