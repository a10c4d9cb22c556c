package chains

import (
	"context"
	"sync"

	"github.com/ClipFinance/intents-solver/chains/evm"
	"github.com/ClipFinance/intents-solver/chains/solana"
	solvererrors "github.com/ClipFinance/intents-solver/common/errors"
	commontypes "github.com/ClipFinance/intents-solver/common/types"
	"github.com/sirupsen/logrus"
)

// ChainConstructor represents a function that constructs a new chain instance.
//
// Parameters:
// - config: the configuration for the chain.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.Chain: the constructed chain instance.
// - error: an error if the chain construction fails.
type ChainConstructor func(config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error)

// ChainFactory defines the interface for chain creation.
type ChainFactory interface {
	// RegisterConstructor registers a new chain constructor for a given chain type.
	RegisterConstructor(chainType commontypes.ChainType, constructor ChainConstructor)

	// CreateChain creates a new chain instance based on the configuration.
	CreateChain(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error)
}

type chainFactory struct {
	// constructors stores the mapping of chain types to their constructors.
	constructors map[commontypes.ChainType]ChainConstructor
	// constructorsMutex protects access to the constructors map.
	constructorsMutex sync.RWMutex
}

// NewChainFactory creates a new instance of the chain factory with the
// default constructors registered.
func NewChainFactory() ChainFactory {
	factory := &chainFactory{
		constructors: make(map[commontypes.ChainType]ChainConstructor),
	}
	factory.registerConstructors()
	return factory
}

// RegisterConstructor registers a new chain constructor.
func (f *chainFactory) RegisterConstructor(chainType commontypes.ChainType, constructor ChainConstructor) {
	f.constructorsMutex.Lock()
	defer f.constructorsMutex.Unlock()

	f.constructors[chainType] = constructor
}

// CreateChain creates a new chain instance based on the configuration.
func (f *chainFactory) CreateChain(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error) {
	f.constructorsMutex.RLock()
	constructor, exists := f.constructors[config.ChainType]
	f.constructorsMutex.RUnlock()

	if !exists {
		return nil, solvererrors.ErrInvalidChainType
	}
	return constructor(config, logger)
}

// registerConstructors registers the blockchain constructors for the chain factory instance.
func (f *chainFactory) registerConstructors() {
	f.RegisterConstructor(commontypes.EVM, func(config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error) {
		return evm.NewEvmChain(config, logger)
	})

	f.RegisterConstructor(commontypes.SOLANA, func(config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error) {
		return solana.NewSolanaChain(config, logger)
	})
}
