package oneclick

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureServer records the last request body and replies with the given
// status and payload.
func captureServer(t *testing.T, status int, payload string) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	captured := make(map[string]interface{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if len(body) > 0 {
			require.NoError(t, json.Unmarshal(body, &captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func newTestClient(serverURL string) *Client {
	config := oneclick.NewConfiguration()
	config.Servers = oneclick.ServerConfigurations{{URL: serverURL}}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Client{
		api:    oneclick.NewAPIClient(config),
		logger: logger,
	}
}

// submitDepositTxResponseBody is a minimally valid SubmitDepositTxResponse:
// the SDK's UnmarshalJSON rejects payloads missing any required property.
const submitDepositTxResponseBody = `{
	"quoteResponse": {
		"timestamp": "2026-01-01T00:00:00Z",
		"signature": "sig",
		"quoteRequest": {
			"dry": false,
			"swapType": "EXACT_INPUT",
			"slippageTolerance": 100,
			"originAsset": "nep141:arb.omft.near",
			"depositType": "ORIGIN_CHAIN",
			"destinationAsset": "nep141:base.omft.near",
			"amount": "1000000",
			"refundTo": "0xrefund",
			"refundType": "ORIGIN_CHAIN",
			"recipient": "0xrecipient",
			"recipientType": "DESTINATION_CHAIN",
			"deadline": "2026-01-01T00:00:00Z"
		},
		"quote": {
			"amountIn": "1000000",
			"amountInFormatted": "1",
			"amountInUsd": "1",
			"minAmountIn": "1000000",
			"amountOut": "990000",
			"amountOutFormatted": "0.99",
			"amountOutUsd": "0.99",
			"minAmountOut": "980000",
			"timeEstimate": 10
		}
	},
	"status": "PENDING_DEPOSIT",
	"updatedAt": "2026-01-01T00:00:00Z",
	"swapDetails": {
		"intentHashes": [],
		"nearTxHashes": [],
		"originChainTxHashes": [],
		"destinationChainTxHashes": []
	}
}`

func TestSubmitDepositTxWireFields(t *testing.T) {
	srv, captured := captureServer(t, http.StatusCreated, submitDepositTxResponseBody)
	client := newTestClient(srv.URL)

	err := client.SubmitDepositTx(context.Background(), "0xdeposit-address", "0xdeposit-tx-hash")
	require.NoError(t, err)

	body := *captured
	assert.Equal(t, "0xdeposit-address", body["depositAddress"])
	assert.Equal(t, "0xdeposit-tx-hash", body["txHash"])
}

func TestRequestQuoteWireFields(t *testing.T) {
	srv, captured := captureServer(t, http.StatusBadRequest, `{"message":"rejected"}`)
	client := newTestClient(srv.URL)

	_, err := client.RequestQuote(context.Background(), QuoteParams{
		Dry:              true,
		OriginAsset:      "nep141:arb.omft.near",
		DestinationAsset: "nep141:base.omft.near",
		Amount:           "1000000",
		Recipient:        "0xrecipient",
		Deadline:         time.Now().Add(time.Hour),
	})
	require.Error(t, err)

	body := *captured
	assert.Equal(t, float64(100), body["slippageTolerance"])
	assert.Equal(t, "EXACT_INPUT", body["swapType"])
	assert.Equal(t, true, body["dry"])
	// RefundTo defaults to the recipient when unset.
	assert.Equal(t, "0xrecipient", body["refundTo"])
}
