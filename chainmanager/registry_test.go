package chainmanager

import (
	"context"
	"io"
	"math/big"
	"testing"

	solvererrors "github.com/ClipFinance/intents-solver/common/errors"
	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct {
	err error
}

func (f *stubFactory) CreateChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.Chain, error) {
	if f.err != nil {
		return nil, f.err
	}
	return NewChainBuilder(config).Build(), nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRegistryAddGetRemove(t *testing.T) {
	registry := NewChainRegistry(&stubFactory{}, testLogger())
	ctx := context.Background()

	require.NoError(t, registry.Add(ctx, &types.ChainConfig{Name: "arbitrum", ChainType: types.EVM}))
	require.NoError(t, registry.Add(ctx, &types.ChainConfig{Name: "base", ChainType: types.EVM}))

	assert.NotNil(t, registry.Get("arbitrum"))
	assert.Nil(t, registry.Get("dogechain"))
	assert.Equal(t, []string{"arbitrum", "base"}, registry.Supported())

	registry.Remove("arbitrum")
	assert.Nil(t, registry.Get("arbitrum"))
	assert.Equal(t, []string{"base"}, registry.Supported())
}

func TestRegistryAddValidation(t *testing.T) {
	registry := NewChainRegistry(&stubFactory{}, testLogger())
	ctx := context.Background()

	assert.ErrorIs(t, registry.Add(ctx, nil), solvererrors.ErrInvalidConfig)
	assert.ErrorIs(t, registry.Add(ctx, &types.ChainConfig{}), solvererrors.ErrInvalidConfig)

	noFactory := NewChainRegistry(nil, testLogger())
	assert.ErrorIs(t, noFactory.Add(ctx, &types.ChainConfig{Name: "arbitrum"}), solvererrors.ErrFactoryNotProvided)

	failing := NewChainRegistry(&stubFactory{err: solvererrors.ErrInvalidChainType}, testLogger())
	assert.ErrorIs(t, failing.Add(ctx, &types.ChainConfig{Name: "arbitrum"}), solvererrors.ErrInvalidChainType)
}

func TestChainWithoutCollaborators(t *testing.T) {
	chain := NewChainBuilder(&types.ChainConfig{Name: "arbitrum"}).Build()
	ctx := context.Background()

	_, err := chain.SendAsset(ctx, &types.TransferIntent{Amount: big.NewInt(1)})
	assert.ErrorIs(t, err, solvererrors.ErrNotImplemented)

	_, err = chain.WaitTransactionConfirmation(ctx, &types.Transaction{Hash: "0xabc"})
	assert.ErrorIs(t, err, solvererrors.ErrNotImplemented)

	_, err = chain.GetTokenBalance(ctx, "0x1", "0x2")
	assert.ErrorIs(t, err, solvererrors.ErrNotImplemented)

	assert.Empty(t, chain.SolverAddress())
}
