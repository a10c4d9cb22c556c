package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ClipFinance/intents-solver/execution"
	"github.com/ClipFinance/intents-solver/inventory"
	"github.com/ClipFinance/intents-solver/locker"
	"github.com/ClipFinance/intents-solver/nearrpc"
	"github.com/ClipFinance/intents-solver/oneclick"
	"github.com/ClipFinance/intents-solver/solverbus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInventory = `{
  "chains": {
    "arbitrum": {
      "enabled": true,
      "tokens": [
        {
          "address": "0xaf88d065e77c8cc2239327c5edb3a432268e5831",
          "symbol": "USDC",
          "decimals": 6,
          "minBalance": "0",
          "currentBalance": "1000000",
          "enabled": true
        }
      ]
    }
  }
}`

// emptyRegistry has no configured custody chains.
type emptyRegistry struct{}

func (r *emptyRegistry) Add(ctx context.Context, config *types.ChainConfig) error { return nil }

func (r *emptyRegistry) Get(chain string) types.Chain { return nil }

func (r *emptyRegistry) Supported() []string { return nil }

func (r *emptyRegistry) Remove(chain string) {}

// nearStub serves call_function queries, returning the balance list NEAR
// encodes as a byte array.
func nearStub(t *testing.T, balances map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params struct {
				ArgsBase64 string `json:"args_base64"`
			} `json:"params"`
		}
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))

		args, err := base64.StdEncoding.DecodeString(req.Params.ArgsBase64)
		require.NoError(t, err)

		var call struct {
			TokenIDs []string `json:"token_ids"`
		}
		require.NoError(t, json.Unmarshal(args, &call))

		result := []string{"0"}
		if len(call.TokenIDs) == 1 {
			if balance, ok := balances[call.TokenIDs[0]]; ok {
				result = []string{balance}
			}
		}

		encoded, _ := json.Marshal(result)
		ints := make([]int, len(encoded))
		for i, b := range encoded {
			ints[i] = int(b)
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]interface{}{"result": ints, "logs": []string{}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestServer(t *testing.T, nearURL string) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	path := filepath.Join(t.TempDir(), "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte(testInventory), 0o600))
	ledger := inventory.NewLedger(path, logger)

	locks := locker.New("", logger)
	t.Cleanup(locks.Close)

	bus := solverbus.NewClient("ws://bus.test/ws", false, nil, logger)

	bridge := oneclick.NewClient("", logger)
	executor := execution.NewOrchestrator(locks, &emptyRegistry{}, bridge, nil, logger)

	return NewServer(Deps{
		Bridge:    bridge,
		Executor:  executor,
		Bus:       bus,
		Ledger:    ledger,
		Near:      nearrpc.NewClient(nearURL, "intents.near", logger),
		AccountID: "solver.near",
		MarkupPct: 0.005,
	}, logger)
}

func TestInventoryRoutes(t *testing.T) {
	stub := nearStub(t, map[string]string{
		"nep141:arbitrum-0xaf88d065e77c8cc2239327c5edb3a432268e5831.omft.near": "424242",
	})
	defer stub.Close()

	server := newTestServer(t, stub.URL)

	t.Run("summary", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/summary", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Success bool                               `json:"success"`
			Data    map[string]inventory.ChainSummary `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Contains(t, body.Data, "arbitrum")
	})

	t.Run("sync token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		url := "/inventory/sync-token?chain=arbitrum&token=0xaf88d065e77c8cc2239327c5edb3a432268e5831"
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"newBalance":"424242"`)
	})

	t.Run("sync token missing params", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/sync-token", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
	})

	t.Run("balance", func(t *testing.T) {
		rec := httptest.NewRecorder()
		url := "/inventory/balance?tokenId=" +
			"nep141:arbitrum-0xaf88d065e77c8cc2239327c5edb3a432268e5831.omft.near"
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"balance":"424242"`)
		assert.Contains(t, rec.Body.String(), `"accountId":"solver.near"`)
	})
}

func TestBusStatusRoute(t *testing.T) {
	server := newTestServer(t, "http://127.0.0.1:0")

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/solver-bus/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enabled":false`)
	assert.Contains(t, rec.Body.String(), `"connected":false`)
}

func TestSwapStatusRequiresDepositAddress(t *testing.T) {
	server := newTestServer(t, "http://127.0.0.1:0")

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swap/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "depositAddress is required")
}

func TestExecuteCrossChainBusinessFailureIsHTTP200(t *testing.T) {
	server := newTestServer(t, "http://127.0.0.1:0")

	body := strings.NewReader(`{
		"intent_id": "intent-9",
		"originChain": "dogechain",
		"originAsset": "nep141:doge.omft.near",
		"destinationChain": "arbitrum",
		"destinationAsset": "nep141:arb-0xaf88d065e77c8cc2239327c5edb3a432268e5831.omft.near",
		"amount": "1000000",
		"recipient": "0x1111111111111111111111111111111111111111"
	}`)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/execute/cross-chain", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"failed"`)
	assert.Contains(t, rec.Body.String(), "unsupported_origin_chain")
}
