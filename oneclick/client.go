// Package oneclick wraps the 1Click cross-chain swap API used for
// settlement routing.
package oneclick

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// QuoteParams carries everything needed to request a swap quote. A dry
// quote prices the route without allocating a deposit address; a binding
// quote returns the address the origin funds must be sent to.
type QuoteParams struct {
	Dry               bool
	OriginAsset       string
	DestinationAsset  string
	Amount            string
	Recipient         string
	RefundTo          string
	SlippageTolerance int32
	Deadline          time.Time
}

// Client is a thin authenticated wrapper over the 1Click SDK.
type Client struct {
	api    *oneclick.APIClient
	token  string
	logger *logrus.Logger
}

// NewClient creates a 1Click client. An empty JWT still works for public
// endpoints but quote requests will be rejected upstream.
func NewClient(jwtToken string, logger *logrus.Logger) *Client {
	config := oneclick.NewConfiguration()
	return &Client{
		api:    oneclick.NewAPIClient(config),
		token:  jwtToken,
		logger: logger,
	}
}

// authContext layers the access token onto the caller's context.
func (c *Client) authContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.token)
}

// RequestQuote asks 1Click to price (and, for non-dry requests, commit
// to) a cross-chain swap.
func (c *Client) RequestQuote(ctx context.Context, params QuoteParams) (*oneclick.QuoteResponse, error) {
	swapType := "EXACT_INPUT"
	slippage := params.SlippageTolerance
	if slippage <= 0 {
		slippage = 100
	}
	refundTo := params.RefundTo
	if refundTo == "" {
		refundTo = params.Recipient
	}
	deadline := params.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(time.Hour)
	}

	request := oneclick.NewQuoteRequest(
		params.Dry,
		swapType,
		float32(slippage),
		params.OriginAsset,
		"ORIGIN_CHAIN",
		params.DestinationAsset,
		params.Amount,
		refundTo,
		"ORIGIN_CHAIN",
		params.Recipient,
		"DESTINATION_CHAIN",
		deadline,
	)

	c.logger.WithFields(logrus.Fields{
		"dry":         params.Dry,
		"origin":      params.OriginAsset,
		"destination": params.DestinationAsset,
		"amount":      params.Amount,
	}).Debug("Requesting 1Click quote")

	resp, httpResp, err := c.api.OneClickAPI.GetQuote(c.authContext(ctx)).QuoteRequest(*request).Execute()
	if err != nil {
		return nil, wrapAPIError(httpResp, err, "failed to get 1Click quote")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, errors.Errorf("1Click quote returned status %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, errors.New("empty 1Click quote response")
	}
	return resp, nil
}

// SubmitDepositTx notifies 1Click that the origin deposit was sent.
func (c *Client) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	request := oneclick.NewSubmitDepositTxRequest(txHash, depositAddress)

	_, httpResp, err := c.api.OneClickAPI.SubmitDepositTx(c.authContext(ctx)).SubmitDepositTxRequest(*request).Execute()
	if err != nil {
		return wrapAPIError(httpResp, err, "failed to submit deposit tx")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return errors.Errorf("deposit submission returned status %d", httpResp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"depositAddress": depositAddress,
		"txHash":         txHash,
	}).Info("Deposit tx submitted to 1Click")
	return nil
}

// GetSwapStatus fetches the execution state of a swap by its deposit
// address.
func (c *Client) GetSwapStatus(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetExecutionStatus(c.authContext(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, wrapAPIError(httpResp, err, "failed to get swap status")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("status query returned status %d", httpResp.StatusCode)
	}
	return resp, nil
}

// GetSupportedTokens lists the tokens 1Click can route.
func (c *Client) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	if err != nil {
		return nil, wrapAPIError(httpResp, err, "failed to get supported tokens")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("token listing returned status %d", httpResp.StatusCode)
	}
	return resp, nil
}

// wrapAPIError surfaces the upstream error message when the response body
// carries one; the generated SDK otherwise reports only the status line.
func wrapAPIError(httpResp *http.Response, err error, msg string) error {
	if httpResp == nil || httpResp.Body == nil {
		return errors.Wrap(err, msg)
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(body) == 0 {
		return errors.Wrapf(err, "%s (status %d)", msg, httpResp.StatusCode)
	}

	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		return errors.Errorf("%s (status %d): %s", msg, httpResp.StatusCode, parsed.Message)
	}
	return errors.Errorf("%s (status %d): %s", msg, httpResp.StatusCode, string(body))
}
