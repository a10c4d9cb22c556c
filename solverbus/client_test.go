package solverbus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ClipFinance/intents-solver/common/errors"
	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	requests []*types.QuoteRequest
	statuses []*types.QuoteStatusEvent
}

func (h *recordingHandler) HandleQuoteRequest(req *types.QuoteRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)
}

func (h *recordingHandler) HandleQuoteStatus(event *types.QuoteStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, event)
}

func (h *recordingHandler) snapshot() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests), len(h.statuses)
}

// busServer is a minimal relay stand-in: it records subscribe calls and
// lets tests push event frames to the connected client.
type busServer struct {
	t          *testing.T
	server     *httptest.Server
	mu         sync.Mutex
	conn       *websocket.Conn
	subscribed []string
	inbound    [][]byte
}

func newBusServer(t *testing.T) *busServer {
	t.Helper()

	bus := &busServer{t: t}
	upgrader := websocket.Upgrader{}

	bus.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		bus.mu.Lock()
		bus.conn = conn
		bus.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var message rpcMessage
			if json.Unmarshal(data, &message) == nil && message.Method == "subscribe" {
				var topics []string
				if json.Unmarshal(message.Params, &topics) == nil && len(topics) > 0 {
					bus.mu.Lock()
					bus.subscribed = append(bus.subscribed, topics[0])
					bus.mu.Unlock()
				}
				continue
			}
			bus.mu.Lock()
			bus.inbound = append(bus.inbound, data)
			bus.mu.Unlock()
		}
	}))
	t.Cleanup(bus.server.Close)
	return bus
}

func (b *busServer) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func (b *busServer) push(frame string) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	require.NotNil(b.t, conn, "no client connected")
	require.NoError(b.t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (b *busServer) waitSubscriptions(t *testing.T) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		subs := append([]string(nil), b.subscribed...)
		b.mu.Unlock()
		if len(subs) >= 2 {
			return subs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("client never subscribed")
	return nil
}

func TestClientSubscribesAndRoutes(t *testing.T) {
	bus := newBusServer(t)
	handler := &recordingHandler{}

	client := NewClient(bus.url(), true, handler, testLogger())
	client.Start()
	t.Cleanup(client.Stop)

	assert.Equal(t, []string{"quote", "quote_status"}, bus.waitSubscriptions(t))
	assert.True(t, client.GetStatus().Connected)

	// Quote requests are recognized by their asset identifiers.
	bus.push(`{"jsonrpc":"2.0","method":"event","params":{"subscription":"sub-1","data":{
		"quote_id":"q-1",
		"defuse_asset_identifier_in":"nep141:usdt.tether-token.near",
		"defuse_asset_identifier_out":"nep141:btc.omft.near",
		"exact_amount_in":"1000000",
		"min_deadline_ms":60000}}}`)

	// Status events are recognized by their status field.
	bus.push(`{"jsonrpc":"2.0","method":"event","params":{"subscription":"sub-2","data":{
		"quote_id":"q-1","status":"filled"}}}`)

	// Confirmations and errors must not reach the handler.
	bus.push(`{"jsonrpc":"2.0","id":1,"result":"sub-1"}`)
	bus.push(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"boom"}}`)

	require.Eventually(t, func() bool {
		requests, statuses := handler.snapshot()
		return requests == 1 && statuses == 1
	}, 2*time.Second, 10*time.Millisecond)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, "q-1", handler.requests[0].QuoteID)
	assert.Equal(t, "sub-1", handler.requests[0].Subscription)
	assert.Equal(t, "1000000", handler.requests[0].Amount())
	assert.Equal(t, types.QuoteStatusFilled, handler.statuses[0].Status)
}

func TestClientSendQuoteResponse(t *testing.T) {
	bus := newBusServer(t)
	client := NewClient(bus.url(), true, &recordingHandler{}, testLogger())
	client.Start()
	t.Cleanup(client.Stop)
	bus.waitSubscriptions(t)

	signed := &types.SignedQuote{QuoteID: "q-1"}
	signed.QuoteOutput.AmountOut = "995000"
	require.NoError(t, client.SendQuoteResponse(signed))

	require.Eventually(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.inbound) == 1
	}, 2*time.Second, 10*time.Millisecond)

	bus.mu.Lock()
	frame := bus.inbound[0]
	bus.mu.Unlock()

	var message struct {
		Jsonrpc string            `json:"jsonrpc"`
		Method  string            `json:"method"`
		Params  types.SignedQuote `json:"params"`
	}
	require.NoError(t, json.Unmarshal(frame, &message))
	assert.Equal(t, "2.0", message.Jsonrpc)
	assert.Equal(t, "respond_quote", message.Method)
	assert.Equal(t, "q-1", message.Params.QuoteID)
}

func TestClientDisabled(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1", false, &recordingHandler{}, testLogger())
	client.Start()

	status := client.GetStatus()
	assert.False(t, status.Enabled)
	assert.False(t, status.Connected)

	assert.ErrorIs(t, client.SendQuoteResponse(&types.SignedQuote{}), errors.ErrBusNotConnected)
}
