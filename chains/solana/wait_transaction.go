package solana

import (
	"context"
	"time"

	"github.com/ClipFinance/intents-solver/common/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// WaitTransactionConfirmation waits for a custody transaction to be
// finalized, polling signature statuses until the confirmation timeout.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transaction to wait for.
//
// Returns:
// - bool: true if the transaction was finalized without error.
// - error: an error if the client is not initialized or the wait times out.
func (s *solana) WaitTransactionConfirmation(ctx context.Context, tx *types.Transaction) (bool, error) {
	s.clientMutex.RLock()
	client := s.client
	s.clientMutex.RUnlock()

	if client == nil {
		return false, errors.New("client not initialized")
	}

	sig, err := sol.SignatureFromBase58(tx.Hash)
	if err != nil {
		return false, errors.Wrap(err, "failed to parse transaction signature")
	}

	ctx, cancel := context.WithTimeout(ctx, confirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		statuses, err := client.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				s.logger.WithField("chain", s.config.Name).WithField("hash", tx.Hash).
					Warn("Transaction failed on chain")
				return false, nil
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
				status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
				s.logger.WithField("chain", s.config.Name).WithField("hash", tx.Hash).
					Info("Transaction confirmed")
				return true, nil
			}
		}
		if err != nil {
			s.logger.WithField("chain", s.config.Name).WithError(err).Debug("Signature status lookup failed")
		}

		select {
		case <-ctx.Done():
			return false, errors.Wrapf(ctx.Err(), "confirmation wait for %s timed out", tx.Hash)
		case <-ticker.C:
		}
	}
}
