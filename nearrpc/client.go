// Package nearrpc is a minimal NEAR JSON-RPC view-call client used to
// read solver balances from the intents contract.
package nearrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultRPCURL is the mainnet NEAR RPC endpoint.
const DefaultRPCURL = "https://rpc.mainnet.near.org"

// DefaultIntentsContract holds multi-token balances for solver accounts.
const DefaultIntentsContract = "intents.near"

// Client performs view calls over NEAR JSON-RPC.
type Client struct {
	logger          *logrus.Logger
	httpClient      *http.Client
	rpcURL          string
	intentsContract string
}

// NewClient creates a view client. Empty arguments fall back to mainnet
// defaults.
func NewClient(rpcURL, intentsContract string, logger *logrus.Logger) *Client {
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	if intentsContract == "" {
		intentsContract = DefaultIntentsContract
	}
	return &Client{
		logger:          logger,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		rpcURL:          rpcURL,
		intentsContract: intentsContract,
	}
}

type rpcRequest struct {
	Jsonrpc string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type queryParams struct {
	RequestType string `json:"request_type"`
	Finality    string `json:"finality"`
	AccountID   string `json:"account_id"`
	MethodName  string `json:"method_name"`
	ArgsBase64  string `json:"args_base64"`
}

type rpcResponse struct {
	Result *callResult     `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// callResult carries the view result as NEAR encodes it: an array of
// byte values, not a base64 string.
type callResult struct {
	Result []int    `json:"result"`
	Logs   []string `json:"logs"`
}

func (r *callResult) bytes() []byte {
	raw := make([]byte, len(r.Result))
	for i, b := range r.Result {
		raw[i] = byte(b)
	}
	return raw
}

// ViewFunction executes a read-only contract call and returns the raw
// JSON result bytes.
func (c *Client) ViewFunction(contractID, methodName string, args interface{}) ([]byte, error) {
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal view args")
	}

	request := rpcRequest{
		Jsonrpc: "2.0",
		ID:      time.Now().UnixMilli(),
		Method:  "query",
		Params: queryParams{
			RequestType: "call_function",
			Finality:    "optimistic",
			AccountID:   contractID,
			MethodName:  methodName,
			ArgsBase64:  base64.StdEncoding.EncodeToString(rawArgs),
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal rpc request")
	}

	resp, err := c.httpClient.Post(c.rpcURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "view call %s.%s failed", contractID, methodName)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("NEAR RPC returned status %d", resp.StatusCode)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode rpc response")
	}
	if parsed.Error != nil {
		return nil, errors.Errorf("NEAR RPC error: %s", string(parsed.Error))
	}
	if parsed.Result == nil {
		return nil, errors.New("empty rpc result")
	}
	return parsed.Result.bytes(), nil
}

// FetchTokenBalance reads the solver's multi-token balance for one asset
// held on the intents contract. Satisfies the inventory BalanceFetcher
// interface.
func (c *Client) FetchTokenBalance(tokenID, accountID string) (*big.Int, error) {
	result, err := c.ViewFunction(c.intentsContract, "mt_batch_balance_of", map[string]interface{}{
		"account_id": accountID,
		"token_ids":  []string{tokenID},
	})
	if err != nil {
		return nil, err
	}

	var balances []string
	if err := json.Unmarshal(result, &balances); err != nil {
		return nil, errors.Wrap(err, "failed to parse balance result")
	}
	if len(balances) == 0 {
		return big.NewInt(0), nil
	}

	balance, ok := new(big.Int).SetString(balances[0], 10)
	if !ok {
		return nil, errors.Errorf("invalid balance %q for %s", balances[0], tokenID)
	}

	c.logger.WithFields(logrus.Fields{
		"token":   tokenID,
		"balance": balance.String(),
	}).Debug("Fetched intents contract balance")
	return balance, nil
}

// FtBalanceOf reads a NEP-141 token balance directly from the token
// contract.
func (c *Client) FtBalanceOf(tokenContract, accountID string) (*big.Int, error) {
	result, err := c.ViewFunction(tokenContract, "ft_balance_of", map[string]interface{}{
		"account_id": accountID,
	})
	if err != nil {
		return nil, err
	}

	var balance string
	if err := json.Unmarshal(result, &balance); err != nil {
		return nil, errors.Wrap(err, "failed to parse ft_balance_of result")
	}

	value, ok := new(big.Int).SetString(balance, 10)
	if !ok {
		return nil, errors.Errorf("invalid balance %q from %s", balance, tokenContract)
	}
	return value, nil
}
