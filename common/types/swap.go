package types

import "time"

// SwapStatus represents the bridge-reported state of a cross-chain swap.
type SwapStatus string

const (
	// SwapStatusPendingDeposit indicates the bridge is waiting for the deposit to arrive.
	SwapStatusPendingDeposit SwapStatus = "PENDING_DEPOSIT"
	// SwapStatusKnownDepositTx indicates the deposit transaction is known but not yet credited.
	SwapStatusKnownDepositTx SwapStatus = "KNOWN_DEPOSIT_TX"
	// SwapStatusProcessing indicates the cross-chain leg is in progress.
	SwapStatusProcessing SwapStatus = "PROCESSING"
	// SwapStatusSuccess indicates the swap completed and funds were delivered.
	SwapStatusSuccess SwapStatus = "SUCCESS"
	// SwapStatusIncompleteDeposit indicates the deposited amount did not cover the quote.
	SwapStatusIncompleteDeposit SwapStatus = "INCOMPLETE_DEPOSIT"
	// SwapStatusRefunded indicates the deposit was returned to the refund address.
	SwapStatusRefunded SwapStatus = "REFUNDED"
	// SwapStatusFailed indicates the swap failed terminally.
	SwapStatusFailed SwapStatus = "FAILED"
)

// IsTerminal reports whether the status ends the settlement lifecycle.
func (s SwapStatus) IsTerminal() bool {
	switch s {
	case SwapStatusSuccess, SwapStatusFailed, SwapStatusRefunded:
		return true
	}
	return false
}

// SwapRecord tracks one settlement from deposit to terminal status. The
// deposit address is the primary key; the record becomes immutable once
// the status is terminal.
type SwapRecord struct {
	DepositAddress   string     `json:"depositAddress"`
	DepositMemo      string     `json:"depositMemo,omitempty"`
	IntentID         string     `json:"intentId"`
	Status           SwapStatus `json:"status"`
	OriginChain      string     `json:"originChain"`
	DestinationChain string     `json:"destinationChain"`
	Amount           string     `json:"amount"`
	Recipient        string     `json:"recipient"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	DepositTxHash    string     `json:"depositTxHash,omitempty"`
	FinalTxHash      string     `json:"finalTxHash,omitempty"`
	Error            string     `json:"error,omitempty"`
}
