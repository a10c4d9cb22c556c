package chainmanager

import (
	"context"
	"math/big"
	"sync"

	"github.com/ClipFinance/intents-solver/common/errors"
	"github.com/ClipFinance/intents-solver/common/types"
)

// Chain implements types.Chain with thread-safe access to its
// dependencies. Each dependency is guarded by its own read-write mutex so
// implementations can be swapped at runtime without racing in-flight
// calls.
type Chain struct {
	config   *types.ChainConfig       // Chain configuration.
	sender   types.TransactionSender  // Transaction sender implementation.
	watcher  types.TransactionWatcher // Transaction watcher implementation.
	provider types.BalanceProvider    // Balance provider implementation.

	senderMutex   sync.RWMutex
	watcherMutex  sync.RWMutex
	providerMutex sync.RWMutex
}

// NewChain creates a new Chain instance.
//
// Parameters:
// - config: the chain configuration.
// - sender: the transaction sender implementation.
// - watcher: the transaction watcher implementation.
// - provider: the balance provider implementation.
//
// Returns:
// - *Chain: a new Chain instance.
func NewChain(
	config *types.ChainConfig,
	sender types.TransactionSender,
	watcher types.TransactionWatcher,
	provider types.BalanceProvider,
) *Chain {
	return &Chain{
		config:   config,
		sender:   sender,
		watcher:  watcher,
		provider: provider,
	}
}

// SendAsset sends an asset with thread-safe access to the sender.
// If the sender is not implemented, it returns an error.
//
// Parameters:
// - ctx: context for managing the lifecycle of the asset sending.
// - intent: the transfer intent containing details of the asset to be sent.
//
// Returns:
// - *types.Transaction: the transaction instance.
// - error: an error if the sender is not implemented or sending fails.
func (c *Chain) SendAsset(ctx context.Context, intent *types.TransferIntent) (*types.Transaction, error) {
	c.senderMutex.RLock()
	defer c.senderMutex.RUnlock()

	if c.sender == nil {
		return nil, errors.ErrNotImplemented
	}
	return c.sender.SendAsset(ctx, intent)
}

// WaitTransactionConfirmation waits for transaction confirmation with
// thread-safe access to the watcher.
//
// Parameters:
// - ctx: context for managing the lifecycle of the confirmation wait.
// - tx: the transaction to be confirmed.
//
// Returns:
// - bool: true if the transaction is confirmed, false otherwise.
// - error: an error if the watcher is not implemented or waiting fails.
func (c *Chain) WaitTransactionConfirmation(ctx context.Context, tx *types.Transaction) (bool, error) {
	c.watcherMutex.RLock()
	defer c.watcherMutex.RUnlock()

	if c.watcher == nil {
		return false, errors.ErrNotImplemented
	}
	return c.watcher.WaitTransactionConfirmation(ctx, tx)
}

// GetTokenBalance returns the balance of the given address for the given
// token with thread-safe access to the provider.
func (c *Chain) GetTokenBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error) {
	c.providerMutex.RLock()
	provider := c.provider
	c.providerMutex.RUnlock()

	if provider == nil {
		return nil, errors.ErrNotImplemented
	}
	return provider.GetTokenBalance(ctx, address, tokenAddress)
}

// SolverAddress returns the solver's custody address on this chain.
func (c *Chain) SolverAddress() string {
	c.providerMutex.RLock()
	provider := c.provider
	c.providerMutex.RUnlock()

	if provider == nil {
		return ""
	}
	return provider.SolverAddress()
}

// GetConfig returns chain configuration.
func (c *Chain) GetConfig() *types.ChainConfig {
	return c.config
}

// GetSender returns the transaction sender with thread-safe access.
func (c *Chain) GetSender() types.TransactionSender {
	c.senderMutex.RLock()
	defer c.senderMutex.RUnlock()
	return c.sender
}

// GetWatcher returns the transaction watcher with thread-safe access.
func (c *Chain) GetWatcher() types.TransactionWatcher {
	c.watcherMutex.RLock()
	defer c.watcherMutex.RUnlock()
	return c.watcher
}
