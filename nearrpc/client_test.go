package nearrpc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// rpcStub answers call_function queries with canned per-method results.
func rpcStub(t *testing.T, results map[string]string) (*httptest.Server, *[]queryParams) {
	t.Helper()

	var queries []queryParams
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			Params queryParams `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		queries = append(queries, request.Params)

		result, ok := results[request.Params.MethodName]
		if !ok {
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"name":"HANDLER_ERROR"}}`)
			return
		}

		bytes := make([]int, len(result))
		for i, b := range []byte(result) {
			bytes[i] = int(b)
		}
		raw, err := json.Marshal(callResult{Result: bytes})
		require.NoError(t, err)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, raw)
	}))
	t.Cleanup(server.Close)
	return server, &queries
}

func TestFetchTokenBalance(t *testing.T) {
	server, queries := rpcStub(t, map[string]string{
		"mt_batch_balance_of": `["123456"]`,
	})
	client := NewClient(server.URL, "intents.near", testLogger())

	balance, err := client.FetchTokenBalance("nep141:usdt.tether-token.near", "solver.near")
	require.NoError(t, err)
	assert.Equal(t, "123456", balance.String())

	// The view call targets the intents contract with base64 args.
	require.Len(t, *queries, 1)
	query := (*queries)[0]
	assert.Equal(t, "call_function", query.RequestType)
	assert.Equal(t, "intents.near", query.AccountID)

	rawArgs, err := base64.StdEncoding.DecodeString(query.ArgsBase64)
	require.NoError(t, err)
	var args struct {
		AccountID string   `json:"account_id"`
		TokenIDs  []string `json:"token_ids"`
	}
	require.NoError(t, json.Unmarshal(rawArgs, &args))
	assert.Equal(t, "solver.near", args.AccountID)
	assert.Equal(t, []string{"nep141:usdt.tether-token.near"}, args.TokenIDs)
}

func TestFetchTokenBalanceEmpty(t *testing.T) {
	server, _ := rpcStub(t, map[string]string{
		"mt_batch_balance_of": `[]`,
	})
	client := NewClient(server.URL, "", testLogger())

	balance, err := client.FetchTokenBalance("nep141:unknown.near", "solver.near")
	require.NoError(t, err)
	assert.Equal(t, "0", balance.String())
}

func TestFtBalanceOf(t *testing.T) {
	server, queries := rpcStub(t, map[string]string{
		"ft_balance_of": `"9000000"`,
	})
	client := NewClient(server.URL, "", testLogger())

	balance, err := client.FtBalanceOf("usdt.tether-token.near", "solver.near")
	require.NoError(t, err)
	assert.Equal(t, "9000000", balance.String())
	assert.Equal(t, "usdt.tether-token.near", (*queries)[0].AccountID)
}

func TestViewFunctionRPCError(t *testing.T) {
	server, _ := rpcStub(t, nil)
	client := NewClient(server.URL, "", testLogger())

	_, err := client.FetchTokenBalance("nep141:usdt.tether-token.near", "solver.near")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HANDLER_ERROR")
}
