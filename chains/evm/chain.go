// Package evm moves solver custody funds on EVM chains: native and
// ERC-20 transfers toward bridge deposit addresses and quote recipients.
package evm

import (
	"sync"
	"time"

	"github.com/ClipFinance/intents-solver/chainmanager"
	"github.com/ClipFinance/intents-solver/chains/evm/signer"
	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// ZeroAddress denotes the native asset in transfer intents.
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// confirmationTimeout bounds how long a confirmation wait may take.
	confirmationTimeout = 2 * time.Minute
	// receiptPollInterval is the delay between receipt lookups.
	receiptPollInterval = 2 * time.Second
)

// evm represents the base EVM chain implementation.
type evm struct {
	config        *types.ChainConfig // Chain configuration.
	logger        *logrus.Logger     // Logger for logging events.
	solverAddress common.Address     // Custody address derived from the key.

	clientMutex sync.RWMutex      // Mutex for client.
	client      *ethclient.Client // Ethereum client.

	signerMutex sync.RWMutex  // Mutex for signer.
	signer      signer.Signer // Signer for signing transactions.
}

// NewEvmChain creates a new EVM chain implementation.
//
// Parameters:
// - config: the chain configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.Chain: a new EVM chain instance.
// - error: an error if any issue occurs during creation.
func NewEvmChain(config *types.ChainConfig, logger *logrus.Logger) (types.Chain, error) {
	client, err := ethclient.Dial(config.RpcUrl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client")
	}

	chain := &evm{
		config: config,
		logger: logger,
		client: client,
	}

	builder := chainmanager.NewChainBuilder(config)

	if config.PrivateKey != "" {
		privKey, err := crypto.HexToECDSA(config.PrivateKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse private key")
		}

		txSigner, err := signer.NewSigner(privKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create signer")
		}

		chain.signerMutex.Lock()
		chain.signer = txSigner
		chain.signerMutex.Unlock()

		chain.solverAddress = txSigner.Address()
		builder.WithTransactionSender(chain)
	}

	builder.WithTransactionWatcher(chain)
	builder.WithBalanceProvider(chain)

	return builder.Build(), nil
}

// Close releases the RPC client. The chain must not be used afterwards.
func (e *evm) Close() {
	e.clientMutex.Lock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.clientMutex.Unlock()
}

// GetClient returns the Ethereum client.
func (e *evm) GetClient() *ethclient.Client {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return e.client
}
