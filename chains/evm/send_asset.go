package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// SendAsset sends an asset (native or ERC-20) based on the provided
// transfer intent.
//
// Parameters:
// - ctx: the context for managing the request.
// - intent: the transfer intent containing details of the asset transfer.
//
// Returns:
// - *types.Transaction: the transaction details.
// - error: an error if the client is not initialized or if the transaction fails.
func (e *evm) SendAsset(ctx context.Context, intent *types.TransferIntent) (*types.Transaction, error) {
	e.clientMutex.RLock()
	client := e.client
	e.clientMutex.RUnlock()

	if client == nil {
		return nil, errors.New("client not initialized")
	}

	e.signerMutex.RLock()
	txSigner := e.signer
	e.signerMutex.RUnlock()

	if txSigner == nil {
		return nil, errors.New("signer not initialized")
	}

	nonce, err := client.PendingNonceAt(ctx, txSigner.Address())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get nonce")
	}

	var tx *ethtypes.Transaction
	if intent.Token == "" || intent.Token == ZeroAddress {
		tx, err = e.sendNativeAsset(ctx, intent, nonce)
	} else {
		tx, err = e.sendToken(ctx, intent, nonce)
	}
	if err != nil {
		return nil, err
	}

	e.logger.WithField("chain", e.config.Name).WithField("hash", tx.Hash().Hex()).Info("Custody transfer sent")

	return &types.Transaction{
		Hash:    tx.Hash().Hex(),
		From:    txSigner.Address().Hex(),
		To:      intent.Recipient,
		Amount:  intent.Amount.String(),
		Token:   intent.Token,
		Nonce:   nonce,
		ChainID: e.config.ChainID,
		QuoteID: intent.QuoteID,
	}, nil
}

// sendNativeAsset sends the chain's native asset.
func (e *evm) sendNativeAsset(ctx context.Context, intent *types.TransferIntent, nonce uint64) (*ethtypes.Transaction, error) {
	tx, err := e.prepareTransaction(ctx, nonce, intent.Recipient, intent.Amount, nil)
	if err != nil {
		return nil, err
	}
	return e.signAndSendTransaction(ctx, tx)
}

// sendToken sends an ERC-20 transfer.
func (e *evm) sendToken(ctx context.Context, intent *types.TransferIntent, nonce uint64) (*ethtypes.Transaction, error) {
	tokenAbi, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token ABI")
	}

	data, err := tokenAbi.Pack("transfer", common.HexToAddress(intent.Recipient), intent.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack transfer data")
	}

	tx, err := e.prepareTransaction(ctx, nonce, intent.Token, big.NewInt(0), data)
	if err != nil {
		return nil, err
	}
	return e.signAndSendTransaction(ctx, tx)
}

// prepareTransaction builds a transaction with estimated gas. EIP-1559
// pricing is used when the chain serves a base fee; legacy pricing with a
// 50% buffer otherwise.
func (e *evm) prepareTransaction(ctx context.Context, nonce uint64, toAddress string, value *big.Int, data []byte) (*ethtypes.Transaction, error) {
	estimatedGas, err := e.EstimateGas(ctx, toAddress, value, data)
	if err != nil {
		e.logger.WithField("chain", e.config.Name).WithError(err).Warn("Failed to estimate gas")
		return nil, errors.Wrap(err, "failed to estimate gas")
	}

	gasLimit := uint64(float64(estimatedGas) * 1.1)

	to := common.HexToAddress(toAddress)

	e.clientMutex.RLock()
	client := e.client
	e.clientMutex.RUnlock()

	if client == nil {
		return nil, errors.New("client not initialized")
	}

	if gasPriceData, err := e.getEIP1559GasPrice(ctx); err == nil {
		return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   big.NewInt(0).SetUint64(e.config.ChainID),
			Nonce:     nonce,
			GasFeeCap: gasPriceData.MaxFeePerGas,
			GasTipCap: gasPriceData.MaxPriorityFeePerGas,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		}), nil
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}

	gasPrice = new(big.Int).Mul(gasPrice, big.NewInt(150))
	gasPrice = new(big.Int).Div(gasPrice, big.NewInt(100))

	return ethtypes.NewTransaction(
		nonce,
		to,
		value,
		gasLimit,
		gasPrice,
		data,
	), nil
}

// signAndSendTransaction signs and broadcasts the prepared transaction.
func (e *evm) signAndSendTransaction(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	e.clientMutex.RLock()
	client := e.client
	e.clientMutex.RUnlock()

	e.signerMutex.RLock()
	txSigner := e.signer
	e.signerMutex.RUnlock()

	if client == nil || txSigner == nil {
		return nil, errors.New("client or signer not initialized")
	}

	chainID := big.NewInt(0).SetUint64(e.config.ChainID)

	signedTx, err := txSigner.SignTx(tx, chainID)
	if err != nil {
		e.logger.WithError(err).Error("Failed to sign transaction")
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err = client.SendTransaction(ctx, signedTx); err != nil {
		e.logger.WithError(err).Error("Failed to send transaction")
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	return signedTx, nil
}
