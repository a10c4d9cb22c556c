package types

import (
	"context"
	"math/big"
)

// ChainType represents supported blockchain types
type ChainType string

const (
	// EVM represents Ethereum Virtual Machine based chains (e.g. Ethereum, Arbitrum, Base, etc.)
	EVM ChainType = "EVM"
	// SOLANA represents Solana chain.
	SOLANA ChainType = "SOLANA"
	// NEAR represents NEAR protocol.
	NEAR ChainType = "NEAR"
	// UNKNOWN represents unknown or unsupported chain type in the system.
	UNKNOWN ChainType = "UNKNOWN"
)

// String converts ChainType to string representation
func (t ChainType) String() string {
	return string(t)
}

// ParseChainType converts string to ChainType representation.
func ParseChainType(s string) ChainType {
	switch s {
	case EVM.String():
		return EVM
	case SOLANA.String():
		return SOLANA
	case NEAR.String():
		return NEAR
	default:
		return UNKNOWN
	}
}

// ChainTypeForName resolves the chain type for a canonical chain name.
func ChainTypeForName(chain string) ChainType {
	switch chain {
	case "ethereum", "arbitrum", "polygon", "avalanche", "bsc", "optimism", "base", "aurora":
		return EVM
	case "solana":
		return SOLANA
	case "near":
		return NEAR
	default:
		return UNKNOWN
	}
}

// ChainConfig holds the configuration for a specific custody chain.
//
// Fields:
// - Name: the canonical chain name ("ethereum", "arbitrum", ...).
// - ChainType: the type of the chain.
// - ChainID: the numeric chain id for EVM chains (zero otherwise).
// - RpcUrl: the URL for the chain's RPC endpoint.
// - PrivateKey: the private key used to move solver custody funds.
// - NetworkID: the network id for NEAR ("mainnet", "testnet").
type ChainConfig struct {
	Name       string
	ChainType  ChainType
	ChainID    uint64
	RpcUrl     string
	PrivateKey string
	NetworkID  string
}

// TransferIntent describes a single custody transfer the solver performs
// toward a bridge deposit target or a quote recipient.
type TransferIntent struct {
	IntentID  string
	QuoteID   string
	Chain     string
	Token     string // empty or ZeroAddress for native asset
	Amount    *big.Int
	Recipient string
}

// Transaction represents a broadcast custody transaction.
type Transaction struct {
	Hash    string
	From    string
	To      string
	Amount  string
	Token   string
	Nonce   uint64
	ChainID uint64
	QuoteID string
}

// TransactionSender provides custody transfer functionality.
type TransactionSender interface {
	// SendAsset sends an asset (native or token) based on the provided transfer intent.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - intent: the transfer intent containing details of the asset transfer.
	//
	// Returns:
	// - *Transaction: the transaction details.
	// - error: an error if the transaction sending fails.
	SendAsset(ctx context.Context, intent *TransferIntent) (*Transaction, error)
}

// TransactionWatcher provides transaction confirmation functionality.
type TransactionWatcher interface {
	// WaitTransactionConfirmation waits for the confirmation of a transaction.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - tx: the transaction to wait for confirmation.
	//
	// Returns:
	// - bool: true if the transaction is confirmed successfully, false otherwise.
	// - error: an error if the transaction confirmation fails.
	WaitTransactionConfirmation(ctx context.Context, tx *Transaction) (bool, error)
}

// BalanceProvider provides read-only custody balance queries.
type BalanceProvider interface {
	// GetTokenBalance returns the balance the given address holds of the
	// given token. For native balances use tokenAddress as empty string.
	GetTokenBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error)

	// SolverAddress returns the solver's custody address on this chain.
	SolverAddress() string
}

// Chain combines all chain-specific functionality.
type Chain interface {
	TransactionSender
	TransactionWatcher
	BalanceProvider
}

// ChainRegistry manages custody chains keyed by canonical chain name.
type ChainRegistry interface {
	// Add adds a new chain to the registry.
	Add(ctx context.Context, config *ChainConfig) error

	// Get retrieves a chain from the registry by its canonical name.
	Get(chain string) Chain

	// Supported returns the canonical names of all registered chains.
	Supported() []string

	// Remove removes a chain from the registry by its canonical name.
	Remove(chain string)
}
