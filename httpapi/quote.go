package httpapi

import (
	"math"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ClipFinance/intents-solver/oneclick"
)

// dryQuoteRecipient is the placeholder recipient used for dry quotes; no
// deposit address is allocated so no funds can ever reach it.
const dryQuoteRecipient = "0x0000000000000000000000000000000000000000"

type crossChainQuoteRequest struct {
	OriginAsset       string `json:"originAsset"`
	DestinationAsset  string `json:"destinationAsset"`
	Amount            string `json:"amount"`
	SlippageTolerance int32  `json:"slippageTolerance,omitempty"`
}

type crossChainQuote struct {
	QuoteID                 string  `json:"quoteId"`
	AmountIn                string  `json:"amountIn"`
	AmountInFormatted       string  `json:"amountInFormatted"`
	AmountInUsd             string  `json:"amountInUsd"`
	AmountOut               string  `json:"amountOut"`
	AmountOutFormatted      string  `json:"amountOutFormatted"`
	BaseAmountOut           string  `json:"baseAmountOut"`
	BaseAmountOutFormatted  string  `json:"baseAmountOutFormatted"`
	AmountOutUsd            string  `json:"amountOutUsd"`
	MinAmountOut            string  `json:"minAmountOut"`
	TimeEstimate            float32 `json:"timeEstimate"`
	Deadline                string  `json:"deadline"`
	Markup                  float64 `json:"markup"`
	MarketMakerFee          string  `json:"marketMakerFee"`
}

type crossChainQuoteResponse struct {
	Status    string          `json:"status"`
	Quote     crossChainQuote `json:"quote"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// handleCrossChainQuote prices a cross-chain route through the bridge
// aggregator and applies the market-maker markup to the output amount.
func (s *Server) handleCrossChainQuote(w http.ResponseWriter, r *http.Request) {
	var req crossChainQuoteRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondFailed(w, err)
		return
	}

	resp, err := s.bridge.RequestQuote(r.Context(), oneclickQuoteParams(req))
	if err != nil {
		s.respondFailed(w, err)
		return
	}

	quote := resp.GetQuote()

	baseOut, err := strconv.ParseFloat(quote.GetAmountOut(), 64)
	if err != nil {
		s.respondFailed(w, err)
		return
	}
	baseOutFormatted, _ := strconv.ParseFloat(quote.GetAmountOutFormatted(), 64)

	s.respondJSON(w, crossChainQuoteResponse{
		Status: "ok",
		Quote: crossChainQuote{
			QuoteID:                "quote_" + strconv.FormatInt(time.Now().UnixMilli(), 10),
			AmountIn:               quote.GetAmountIn(),
			AmountInFormatted:      quote.GetAmountInFormatted(),
			AmountInUsd:            quote.GetAmountInUsd(),
			AmountOut:              formatWholeAmount(baseOut * (1 - s.markupPct)),
			AmountOutFormatted:     strconv.FormatFloat(baseOutFormatted*(1-s.markupPct), 'f', 6, 64),
			BaseAmountOut:          quote.GetAmountOut(),
			BaseAmountOutFormatted: quote.GetAmountOutFormatted(),
			AmountOutUsd:           quote.GetAmountOutUsd(),
			MinAmountOut:           quote.GetMinAmountOut(),
			TimeEstimate:           quote.GetTimeEstimate(),
			Deadline:               quote.GetDeadline().Format(time.RFC3339),
			Markup:                 s.markupPct,
			MarketMakerFee:         formatWholeAmount(baseOut * s.markupPct),
		},
		Timestamp: resp.GetTimestamp().Format(time.RFC3339),
	})
}

// handleSupportedTokens lists the tokens the bridge aggregator supports.
func (s *Server) handleSupportedTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.bridge.GetSupportedTokens(r.Context())
	if err != nil {
		s.respondFailed(w, err)
		return
	}

	s.respondJSON(w, map[string]interface{}{
		"status": "ok",
		"tokens": tokens,
	})
}

// oneclickQuoteParams maps a dry quote request onto the bridge client
// parameters.
func oneclickQuoteParams(req crossChainQuoteRequest) oneclick.QuoteParams {
	return oneclick.QuoteParams{
		Dry:               true,
		OriginAsset:       req.OriginAsset,
		DestinationAsset:  req.DestinationAsset,
		Amount:            req.Amount,
		Recipient:         dryQuoteRecipient,
		RefundTo:          dryQuoteRecipient,
		SlippageTolerance: req.SlippageTolerance,
		Deadline:          time.Now().Add(time.Hour),
	}
}

// formatWholeAmount renders a floored raw token amount without exponent
// notation.
func formatWholeAmount(x float64) string {
	x = math.Floor(x)
	if x <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return "0"
	}
	return new(big.Float).SetFloat64(x).Text('f', 0)
}
