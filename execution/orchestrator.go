// Package execution drives cross-chain settlement for accepted intents:
// binding bridge quote, custody transfer to the deposit address, deposit
// proof submission, and background settlement monitoring.
package execution

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ClipFinance/intents-solver/locker"
	"github.com/ClipFinance/intents-solver/oneclick"
	"github.com/ClipFinance/intents-solver/swapmonitor"
	oneclicksdk "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/sirupsen/logrus"
)

const (
	// lockTTL covers the synchronous part of an execution plus slack for
	// the background monitor to take over.
	lockTTL = 2 * time.Minute

	// monitorBudget bounds the background settlement watch per intent.
	monitorBudget = 15 * time.Minute

	// quoteValidity is the binding quote deadline window.
	quoteValidity = time.Hour
)

// Orchestrator settles accepted cross-chain intents. All business
// failures are reported as tagged results, never as errors.
type Orchestrator struct {
	logger   *logrus.Logger
	locks    *locker.Locker
	registry types.ChainRegistry
	bridge   *oneclick.Client
	tracker  *swapmonitor.Tracker
}

// NewOrchestrator creates an execution orchestrator.
func NewOrchestrator(
	locks *locker.Locker,
	registry types.ChainRegistry,
	bridge *oneclick.Client,
	tracker *swapmonitor.Tracker,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		locks:    locks,
		registry: registry,
		bridge:   bridge,
		tracker:  tracker,
	}
}

// Execute settles a single accepted intent: binding quote, custody
// transfer to the bridge deposit address, deposit proof, monitoring.
//
// The per-intent lock serializes concurrent execution attempts; a held
// lock returns a busy result immediately. The lock is released on every
// failure path and, on success, by the background monitor.
func (o *Orchestrator) Execute(ctx context.Context, req *types.ExecutionRequest) *types.ExecutionResult {
	lockKey := "intent:" + req.IntentID

	if !o.locks.Lock(ctx, lockKey, lockTTL) {
		return &types.ExecutionResult{
			Status:  types.ExecutionStatusBusy,
			Message: "Intent is already being processed",
		}
	}

	originChain := strings.ToLower(req.OriginChain)

	chain := o.registry.Get(originChain)
	if chain == nil || chain.SolverAddress() == "" {
		o.locks.Unlock(ctx, lockKey)
		return &types.ExecutionResult{
			Status: types.ExecutionStatusFailed,
			Reason: "unsupported_origin_chain",
			Message: "Chain " + req.OriginChain + " is not configured. Supported chains: " +
				strings.Join(o.registry.Supported(), ", "),
		}
	}

	quote, result := o.requestBindingQuote(ctx, req)
	if result != nil {
		o.locks.Unlock(ctx, lockKey)
		return result
	}

	depositAddress := quote.GetDepositAddress()
	depositMemo := quote.GetDepositMemo()

	tx, result := o.transferCustody(ctx, chain, req, depositAddress)
	if result != nil {
		o.locks.Unlock(ctx, lockKey)
		return result
	}

	if err := o.bridge.SubmitDepositTx(ctx, depositAddress, tx.Hash); err != nil {
		o.locks.Unlock(ctx, lockKey)
		o.logger.WithError(err).WithField("intentID", req.IntentID).Error("Failed to submit deposit proof")
		return &types.ExecutionResult{
			Status:  types.ExecutionStatusFailed,
			Error:   err.Error(),
			Message: "Failed to execute cross-chain swap",
		}
	}

	o.tracker.RegisterSwap(depositAddress, swapmonitor.RegisterParams{
		DepositMemo:      depositMemo,
		IntentID:         req.IntentID,
		OriginChain:      originChain,
		DestinationChain: strings.ToLower(req.DestinationChain),
		Amount:           req.Amount,
		Recipient:        req.Recipient,
		DepositTxHash:    tx.Hash,
	})

	go o.monitorInBackground(depositAddress, lockKey, req.IntentID)

	o.logger.WithFields(logrus.Fields{
		"intentID":       req.IntentID,
		"depositAddress": depositAddress,
		"depositTxHash":  tx.Hash,
	}).Info("Cross-chain execution initiated")

	return &types.ExecutionResult{
		Status:         types.ExecutionStatusProcessing,
		IntentID:       req.IntentID,
		QuoteID:        req.QuoteID,
		DepositTxHash:  tx.Hash,
		DepositAddress: depositAddress,
		SwapStatus:     string(types.SwapStatusPendingDeposit),
		EstimatedTime:  quote.GetTimeEstimate(),
		Quote: &types.QuoteTerms{
			AmountIn:  quote.GetAmountIn(),
			AmountOut: quote.GetAmountOut(),
			Deadline:  quote.GetDeadline().Format(time.RFC3339),
		},
		Message: "Funds sent toward the bridge deposit address. Cross-chain swap in progress.",
	}
}

// requestBindingQuote asks the bridge for a non-dry quote carrying a real
// deposit address. A nil result means the quote is usable.
func (o *Orchestrator) requestBindingQuote(ctx context.Context, req *types.ExecutionRequest) (*oneclicksdk.Quote, *types.ExecutionResult) {
	resp, err := o.bridge.RequestQuote(ctx, oneclick.QuoteParams{
		Dry:               false,
		OriginAsset:       req.OriginAsset,
		DestinationAsset:  req.DestinationAsset,
		Amount:            req.Amount,
		Recipient:         req.Recipient,
		RefundTo:          req.RefundTo,
		SlippageTolerance: req.SlippageTolerance,
		Deadline:          time.Now().Add(quoteValidity),
	})
	if err != nil {
		o.logger.WithError(err).WithField("intentID", req.IntentID).Error("Binding quote request failed")
		return nil, &types.ExecutionResult{
			Status:  types.ExecutionStatusFailed,
			Error:   err.Error(),
			Message: "Failed to execute cross-chain swap",
		}
	}

	quote := resp.GetQuote()
	if quote.GetDepositAddress() == "" {
		return nil, &types.ExecutionResult{
			Status:  types.ExecutionStatusFailed,
			Reason:  "no_deposit_address",
			Message: "Bridge quote did not include a deposit address",
		}
	}

	return &quote, nil
}

// transferCustody moves the origin amount from the solver's custody to
// the bridge deposit address and waits for confirmation.
func (o *Orchestrator) transferCustody(ctx context.Context, chain types.Chain, req *types.ExecutionRequest, depositAddress string) (*types.Transaction, *types.ExecutionResult) {
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, &types.ExecutionResult{
			Status:  types.ExecutionStatusFailed,
			Reason:  "invalid_amount",
			Message: "Amount must be a positive integer in base units",
		}
	}

	intent := &types.TransferIntent{
		IntentID:  req.IntentID,
		QuoteID:   req.QuoteID,
		Chain:     strings.ToLower(req.OriginChain),
		Token:     types.ExtractTokenAddress(req.OriginAsset),
		Amount:    amount,
		Recipient: depositAddress,
	}

	tx, err := chain.SendAsset(ctx, intent)
	if err != nil {
		o.logger.WithError(err).WithField("intentID", req.IntentID).Error("Custody transfer failed")
		return nil, &types.ExecutionResult{
			Status:  types.ExecutionStatusFailed,
			Error:   err.Error(),
			Message: "Failed to execute cross-chain swap",
		}
	}

	confirmed, err := chain.WaitTransactionConfirmation(ctx, tx)
	if err != nil {
		o.logger.WithError(err).WithField("intentID", req.IntentID).Error("Custody transfer confirmation failed")
		return nil, &types.ExecutionResult{
			Status:  types.ExecutionStatusFailed,
			Error:   err.Error(),
			Message: "Failed to execute cross-chain swap",
		}
	}
	if !confirmed {
		return nil, &types.ExecutionResult{
			Status:  types.ExecutionStatusFailed,
			Reason:  "transfer_reverted",
			Message: "Custody transfer " + tx.Hash + " reverted on chain",
		}
	}

	return tx, nil
}

// monitorInBackground watches the settlement to a terminal status or the
// monitoring budget and releases the intent lock unconditionally.
func (o *Orchestrator) monitorInBackground(depositAddress, lockKey, intentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), monitorBudget+time.Minute)
	defer cancel()
	defer o.locks.Unlock(ctx, lockKey)

	record, err := o.tracker.MonitorSwap(ctx, depositAddress, monitorBudget)
	if err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"intentID":       intentID,
			"depositAddress": depositAddress,
		}).Warn("Settlement monitoring ended without a terminal status")
		return
	}

	o.logger.WithFields(logrus.Fields{
		"intentID":       intentID,
		"depositAddress": depositAddress,
		"status":         record.Status,
		"finalTxHash":    record.FinalTxHash,
	}).Info("Settlement monitoring finished")
}
