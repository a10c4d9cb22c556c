package solana

import (
	"context"

	"github.com/ClipFinance/intents-solver/chains/solana/utils"
	"github.com/ClipFinance/intents-solver/common/types"
	sol "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SendAsset sends an asset to a recipient address on the chain.
//
// Parameters:
// - ctx: the context for managing the request.
// - intent: the transfer intent containing details of the asset transfer.
//
// Returns:
// - *types.Transaction: the transaction details.
// - error: an error if the transfer fails.
func (s *solana) SendAsset(ctx context.Context, intent *types.TransferIntent) (*types.Transaction, error) {
	recipientPubKey, err := sol.PublicKeyFromBase58(intent.Recipient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse recipient address")
	}
	signerPubKey := s.signer.PublicKey()

	latestBlockhashResult, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest blockhash")
	}
	latestBlockhash := latestBlockhashResult.Value.Blockhash

	instructions, err := s.createTransferInstructions(ctx, intent, recipientPubKey, latestBlockhash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create instructions")
	}

	sig, err := s.sendTransaction(ctx, instructions, latestBlockhash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	s.logger.WithFields(logrus.Fields{
		"chain":     s.config.Name,
		"signature": sig.String(),
		"quoteID":   intent.QuoteID,
	}).Info("Custody transfer broadcast")

	return &types.Transaction{
		Hash:    sig.String(),
		From:    signerPubKey.String(),
		To:      recipientPubKey.String(),
		Amount:  intent.Amount.String(),
		Token:   intent.Token,
		ChainID: s.config.ChainID,
		QuoteID: intent.QuoteID,
	}, nil
}

func (s *solana) createTransferInstructions(ctx context.Context, intent *types.TransferIntent, recipient sol.PublicKey, latestBlockHash sol.Hash) ([]sol.Instruction, error) {
	var basicInstructions []sol.Instruction
	var err error

	if intent.Token == "" || intent.Token == sol.SystemProgramID.String() {
		basicInstructions, err = s.createNativeTransferInstructions(ctx, intent, recipient)
	} else {
		basicInstructions, err = s.createTokenTransferInstructions(ctx, intent, recipient)
	}
	if err != nil {
		return nil, err
	}

	if intent.IntentID != "" {
		basicInstructions = append(basicInstructions, utils.CreateMemoInstruction(intent.IntentID))
	}

	// Simulate transaction to get compute units
	computeUnits, err := utils.SimulateTransaction(ctx, s.client, s.signer, basicInstructions, latestBlockHash)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to simulate transaction, using default compute units")
		computeUnits = defaultComputeUnits
	}
	computeUnits = (computeUnits * computeUnitBuffer) / 100

	finalInstructions := make([]sol.Instruction, 0, len(basicInstructions)+2)

	setComputeUnitLimitIx, err := computebudget.NewSetComputeUnitLimitInstruction(uint32(computeUnits)).ValidateAndBuild()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create compute unit limit instruction")
	}
	finalInstructions = append(finalInstructions, setComputeUnitLimitIx)

	setPriorityFeeIx, err := computebudget.NewSetComputeUnitPriceInstruction(defaultPriorityFee).ValidateAndBuild()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create priority fee instruction")
	}
	finalInstructions = append(finalInstructions, setPriorityFeeIx)

	finalInstructions = append(finalInstructions, basicInstructions...)

	return finalInstructions, nil
}

func (s *solana) createNativeTransferInstructions(ctx context.Context, intent *types.TransferIntent, recipient sol.PublicKey) ([]sol.Instruction, error) {
	signerPubKey := s.signer.PublicKey()
	amount := intent.Amount.Uint64()

	if err := s.checkSufficientBalance(ctx, signerPubKey, amount, true); err != nil {
		return nil, errors.Wrap(err, "failed to check balance")
	}

	transferIx, err := system.NewTransferInstruction(amount, signerPubKey, recipient).ValidateAndBuild()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transfer instruction")
	}

	return []sol.Instruction{transferIx}, nil
}

func (s *solana) createTokenTransferInstructions(ctx context.Context, intent *types.TransferIntent, recipient sol.PublicKey) ([]sol.Instruction, error) {
	signerPubKey := s.signer.PublicKey()
	amount := intent.Amount.Uint64()

	mintPubKey, err := sol.PublicKeyFromBase58(intent.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token mint")
	}

	instructions := make([]sol.Instruction, 0)

	// Check ATA and create if needed
	createATAInstruction, err := s.checkAndCreateATAInstructionIfNotExist(
		ctx,
		signerPubKey,
		mintPubKey,
		recipient,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check and create ATA instruction")
	}
	if createATAInstruction != nil {
		instructions = append(instructions, createATAInstruction)
	}

	sourceATA, err := utils.GetAssociatedTokenAddress(mintPubKey, signerPubKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get associated token address for signer")
	}
	destATA, err := utils.GetAssociatedTokenAddress(mintPubKey, recipient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get associated token address for recipient")
	}

	if err := s.checkSufficientBalance(ctx, sourceATA, amount, false); err != nil {
		return nil, errors.Wrap(err, "failed to check balance")
	}

	instructions = append(instructions, utils.CreateTransferInstruction(
		sourceATA,
		destATA,
		signerPubKey,
		amount,
	))

	return instructions, nil
}

// checkAndCreateATAInstructionIfNotExist returns the instruction to create an associated token account if it doesn't exist
func (s *solana) checkAndCreateATAInstructionIfNotExist(
	ctx context.Context,
	payer sol.PublicKey,
	mint sol.PublicKey,
	owner sol.PublicKey,
) (sol.Instruction, error) {
	addr, err := utils.GetAssociatedTokenAddress(mint, owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get associated token address")
	}

	acc, err := s.client.GetAccountInfo(ctx, addr)
	if err != nil && err.Error() != "not found" { // skip not found error
		return nil, errors.Wrap(err, "failed to get account info")
	}

	if acc == nil {
		instruction := utils.CreateAssociatedTokenAccountInstruction(
			payer,
			addr,
			owner,
			mint,
			sol.SPLAssociatedTokenAccountProgramID,
			sol.TokenProgramID,
		)

		return instruction, nil
	}

	return nil, nil
}

// sendTransaction sends a transaction with multiple instructions
func (s *solana) sendTransaction(
	ctx context.Context,
	instructions []sol.Instruction,
	recentBlockHash sol.Hash,
) (sol.Signature, error) {
	tx, err := sol.NewTransaction(
		instructions,
		recentBlockHash,
		sol.TransactionPayer(s.signer.PublicKey()),
	)
	if err != nil {
		return sol.Signature{}, errors.Wrap(err, "failed to create transaction")
	}

	_, err = tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if s.signer.PublicKey().Equals(key) {
			return &s.signer
		}

		return nil
	})
	if err != nil {
		return sol.Signature{}, errors.Wrap(err, "failed to sign transaction")
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return sol.Signature{}, errors.Wrap(err, "failed to send transaction")
	}

	return sig, nil
}
