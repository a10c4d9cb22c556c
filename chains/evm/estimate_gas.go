package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// GasPriceData represents the gas price data for EIP-1559 transactions.
type GasPriceData struct {
	MaxFeePerGas         *big.Int // The maximum fee per gas.
	MaxPriorityFeePerGas *big.Int // The maximum priority fee per gas.
}

// EstimateGas estimates the gas required for a transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - toAddress: the recipient address of the transaction.
// - value: the amount of Ether to send with the transaction.
// - data: the input data for the transaction.
//
// Returns:
// - uint64: the estimated gas required for the transaction.
// - error: an error if the client or signer is not initialized or if the gas estimation fails.
func (e *evm) EstimateGas(ctx context.Context, toAddress string, value *big.Int, data []byte) (uint64, error) {
	e.clientMutex.RLock()
	client := e.client
	e.clientMutex.RUnlock()

	e.signerMutex.RLock()
	txSigner := e.signer
	e.signerMutex.RUnlock()

	if client == nil || txSigner == nil {
		return 0, errors.New("client or signer not initialized")
	}

	to := common.HexToAddress(toAddress)
	msg := ethereum.CallMsg{
		From:  txSigner.Address(),
		To:    &to,
		Value: value,
		Data:  data,
	}

	return client.EstimateGas(ctx, msg)
}

// getEIP1559GasPrice retrieves dynamic fee pricing. Fails on chains that
// do not serve a base fee, in which case the caller falls back to legacy
// pricing.
func (e *evm) getEIP1559GasPrice(ctx context.Context) (*GasPriceData, error) {
	e.clientMutex.RLock()
	client := e.client
	e.clientMutex.RUnlock()

	if client == nil {
		return nil, errors.New("client not initialized")
	}

	suggestedTip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		e.logger.WithError(err).Error("Failed to get suggested gas tip")
		suggestedTip = big.NewInt(1)
	}

	if suggestedTip.Cmp(big.NewInt(0)) == 0 {
		suggestedTip = big.NewInt(1)
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		e.logger.WithField("chain", e.config.Name).WithError(err).Warn("Failed to get header by number")
		return nil, errors.Wrap(err, "failed to get header by number")
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		return nil, errors.New("base fee is nil")
	}

	baseFeeBuf := new(big.Int).Mul(baseFee, big.NewInt(130))
	baseFeeBuf = baseFeeBuf.Div(baseFeeBuf, big.NewInt(100))
	maxFeePerGas := new(big.Int).Add(baseFeeBuf, suggestedTip)

	if maxFeePerGas.Cmp(suggestedTip) <= 0 {
		maxFeePerGas = new(big.Int).Add(suggestedTip, baseFee)
	}

	return &GasPriceData{
		MaxFeePerGas:         maxFeePerGas,
		MaxPriorityFeePerGas: suggestedTip,
	}, nil
}
