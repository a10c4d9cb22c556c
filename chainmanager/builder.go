package chainmanager

import (
	"github.com/ClipFinance/intents-solver/common/types"
)

// ChainBuilder is a builder pattern implementation for chain
// configuration. It allows setting the transaction sender, transaction
// watcher, and balance provider components of a chain.
type ChainBuilder struct {
	config   *types.ChainConfig       // Chain configuration.
	sender   types.TransactionSender  // Transaction sender implementation.
	watcher  types.TransactionWatcher // Transaction watcher implementation.
	provider types.BalanceProvider    // Balance provider implementation.
}

// NewChainBuilder creates a new chain builder instance.
//
// Parameters:
// - config: the chain configuration.
//
// Returns:
// - *ChainBuilder: a new ChainBuilder instance.
func NewChainBuilder(config *types.ChainConfig) *ChainBuilder {
	return &ChainBuilder{
		config: config,
	}
}

// WithTransactionSender sets transaction sender implementation.
//
// Parameters:
// - sender: the transaction sender implementation.
//
// Returns:
// - *ChainBuilder: the updated ChainBuilder instance.
func (b *ChainBuilder) WithTransactionSender(sender types.TransactionSender) *ChainBuilder {
	b.sender = sender
	return b
}

// WithTransactionWatcher sets transaction watcher implementation.
//
// Parameters:
// - watcher: the transaction watcher implementation.
//
// Returns:
// - *ChainBuilder: the updated ChainBuilder instance.
func (b *ChainBuilder) WithTransactionWatcher(watcher types.TransactionWatcher) *ChainBuilder {
	b.watcher = watcher
	return b
}

// WithBalanceProvider sets balance provider implementation.
//
// Parameters:
// - provider: the balance provider implementation.
//
// Returns:
// - *ChainBuilder: the updated ChainBuilder instance.
func (b *ChainBuilder) WithBalanceProvider(provider types.BalanceProvider) *ChainBuilder {
	b.provider = provider
	return b
}

// Build creates a new chain instance with configured implementations.
//
// Returns:
// - types.Chain: a new Chain instance with the configured implementations.
func (b *ChainBuilder) Build() types.Chain {
	return NewChain(b.config, b.sender, b.watcher, b.provider)
}
