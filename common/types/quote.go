package types

// QuoteRequest is an inbound ask from the solver bus for an exchange
// amount between two assets, correlated by an opaque quote id. Exactly one
// of ExactAmountIn/ExactAmountOut is meaningful per request.
type QuoteRequest struct {
	Subscription  string `json:"subscription,omitempty"`
	QuoteID       string `json:"quote_id"`
	AssetIn       string `json:"defuse_asset_identifier_in"`
	AssetOut      string `json:"defuse_asset_identifier_out"`
	ExactAmountIn string `json:"exact_amount_in,omitempty"`
	ExactAmountOut string `json:"exact_amount_out,omitempty"`
	MinDeadlineMs int64  `json:"min_deadline_ms"`
}

// Amount returns whichever exact amount the request fixed.
func (r *QuoteRequest) Amount() string {
	if r.ExactAmountIn != "" {
		return r.ExactAmountIn
	}
	return r.ExactAmountOut
}

// Quote status values delivered by the solver bus.
const (
	QuoteStatusPending   = "pending"
	QuoteStatusFilled    = "filled"
	QuoteStatusExpired   = "expired"
	QuoteStatusCancelled = "cancelled"
)

// QuoteStatusEvent is an inbound lifecycle notification for a previously
// responded quote.
type QuoteStatusEvent struct {
	Subscription string `json:"subscription,omitempty"`
	QuoteID      string `json:"quote_id"`
	Status       string `json:"status"`
}

// QuoteMetadata tracks an outstanding reservation made for a signed quote.
// It is owned exclusively by the quote lifecycle coordinator and removed on
// terminal status.
type QuoteMetadata struct {
	QuoteID     string
	OriginAsset string
	DestAsset   string
	AmountOut   string
	CreatedAt   int64 // unix milliseconds
}

// QuoteOutput carries the side of the exchange the solver computed. The
// side fixed by the request stays empty.
type QuoteOutput struct {
	AmountIn  string `json:"amount_in,omitempty"`
	AmountOut string `json:"amount_out,omitempty"`
}

// SignedPayload is the NEP-413 payload a verifier recomputes the digest
// from.
type SignedPayload struct {
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
	Recipient string `json:"recipient"`
}

// SignedData packages the signature and public key in NEAR textual
// encoding alongside the payload.
type SignedData struct {
	Standard  string        `json:"standard"`
	Payload   SignedPayload `json:"payload"`
	Signature string        `json:"signature"`
	PublicKey string        `json:"public_key"`
}

// SignedQuote is the solver's binding commitment sent back over the bus.
type SignedQuote struct {
	QuoteID     string      `json:"quote_id"`
	QuoteOutput QuoteOutput `json:"quote_output"`
	SignedData  SignedData  `json:"signed_data"`
}
