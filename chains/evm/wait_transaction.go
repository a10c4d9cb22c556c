package evm

import (
	"context"
	"time"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// WaitTransactionConfirmation waits for a custody transaction to be
// mined, polling for the receipt until the confirmation timeout.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transaction to wait for.
//
// Returns:
// - bool: true if the transaction succeeded, false if it reverted.
// - error: an error if the client is not initialized or the wait times out.
func (e *evm) WaitTransactionConfirmation(ctx context.Context, tx *types.Transaction) (bool, error) {
	e.clientMutex.RLock()
	client := e.client
	e.clientMutex.RUnlock()

	if client == nil {
		return false, errors.New("client not initialized")
	}

	hash := common.HexToHash(tx.Hash)

	ctx, cancel := context.WithTimeout(ctx, confirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			success := receipt.Status == ethtypes.ReceiptStatusSuccessful
			e.logger.WithField("chain", e.config.Name).WithField("hash", tx.Hash).
				WithField("success", success).Info("Transaction confirmed")
			return success, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			e.logger.WithField("chain", e.config.Name).WithError(err).Debug("Receipt lookup failed")
		}

		select {
		case <-ctx.Done():
			return false, errors.Wrapf(ctx.Err(), "confirmation wait for %s timed out", tx.Hash)
		case <-ticker.C:
		}
	}
}
