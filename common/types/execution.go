package types

// ExecutionRequest asks the solver to settle a previously accepted
// cross-chain quote by intent id.
type ExecutionRequest struct {
	QuoteID           string `json:"quote_id,omitempty"`
	IntentID          string `json:"intent_id"`
	OriginChain       string `json:"originChain"`
	OriginAsset       string `json:"originAsset"`
	DestinationChain  string `json:"destinationChain"`
	DestinationAsset  string `json:"destinationAsset"`
	Amount            string `json:"amount"`
	Recipient         string `json:"recipient"`
	RefundTo          string `json:"refundTo,omitempty"`
	SlippageTolerance int32  `json:"slippageTolerance,omitempty"` // basis points
}

// Execution result statuses. Business failures are values here, never
// errors crossing the component boundary.
const (
	ExecutionStatusProcessing = "processing"
	ExecutionStatusBusy       = "busy"
	ExecutionStatusFailed     = "failed"
	ExecutionStatusOK         = "ok"
)

// QuoteTerms echoes the binding bridge quote terms back to the caller.
type QuoteTerms struct {
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Deadline  string `json:"deadline"`
}

// ExecutionResult is the tagged outcome of an execution request.
type ExecutionResult struct {
	Status         string      `json:"status"`
	Reason         string      `json:"reason,omitempty"`
	Error          string      `json:"error,omitempty"`
	Message        string      `json:"message,omitempty"`
	IntentID       string      `json:"intent_id,omitempty"`
	QuoteID        string      `json:"quote_id,omitempty"`
	DepositTxHash  string      `json:"depositTxHash,omitempty"`
	DepositAddress string      `json:"depositAddress,omitempty"`
	SwapStatus     string      `json:"swapStatus,omitempty"`
	EstimatedTime  float32     `json:"estimatedTime,omitempty"`
	Quote          *QuoteTerms `json:"quote,omitempty"`
}
