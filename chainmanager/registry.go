package chainmanager

import (
	"context"
	"sort"
	"sync"

	"github.com/ClipFinance/intents-solver/common/errors"
	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/sirupsen/logrus"
)

// ChainFactory creates chain instances from configuration.
type ChainFactory interface {
	CreateChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.Chain, error)
}

type blockchainRegistry struct {
	logger      *logrus.Logger
	chains      map[string]types.Chain
	chainsMutex sync.RWMutex

	factory      ChainFactory
	factoryMutex sync.RWMutex
}

// NewChainRegistry creates a registry that builds chains through the
// given factory and keys them by canonical chain name.
func NewChainRegistry(factory ChainFactory, logger *logrus.Logger) types.ChainRegistry {
	return &blockchainRegistry{
		chains:  make(map[string]types.Chain),
		factory: factory,
		logger:  logger,
	}
}

func (r *blockchainRegistry) Add(ctx context.Context, config *types.ChainConfig) error {
	if config == nil || config.Name == "" {
		return errors.ErrInvalidConfig
	}

	// Lock factory for reading to prevent changes during chain creation.
	r.factoryMutex.RLock()
	factory := r.factory
	r.factoryMutex.RUnlock()

	if factory == nil {
		return errors.ErrFactoryNotProvided
	}

	chain, err := factory.CreateChain(ctx, config, r.logger)
	if err != nil {
		return err
	}

	r.chainsMutex.Lock()
	r.chains[config.Name] = chain
	r.chainsMutex.Unlock()

	r.logger.WithFields(logrus.Fields{
		"chain": config.Name,
		"type":  config.ChainType,
	}).Info("Chain registered")
	return nil
}

func (r *blockchainRegistry) Get(chain string) types.Chain {
	r.chainsMutex.RLock()
	instance := r.chains[chain]
	r.chainsMutex.RUnlock()
	return instance
}

func (r *blockchainRegistry) Supported() []string {
	r.chainsMutex.RLock()
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	r.chainsMutex.RUnlock()

	sort.Strings(names)
	return names
}

func (r *blockchainRegistry) Remove(chain string) {
	r.chainsMutex.Lock()
	delete(r.chains, chain)
	r.chainsMutex.Unlock()
}
