// Package solana moves solver custody funds on Solana: native SOL and
// SPL token transfers toward bridge deposit addresses and quote recipients.
package solana

import (
	"sync"
	"time"

	"github.com/ClipFinance/intents-solver/chainmanager"
	"github.com/ClipFinance/intents-solver/common/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// confirmationTimeout bounds how long a confirmation wait may take.
	confirmationTimeout = 2 * time.Minute
	// statusPollInterval is the delay between signature status lookups.
	statusPollInterval = 2 * time.Second

	// defaultComputeUnits is used when transaction simulation fails.
	defaultComputeUnits = uint64(200_000)
	// computeUnitBuffer is the percentage buffer applied to simulated units.
	computeUnitBuffer = uint64(120)
	// defaultPriorityFee is the per-compute-unit price in micro-lamports.
	defaultPriorityFee = uint64(1_000)
)

// solana represents the base Solana chain implementation.
type solana struct {
	config *types.ChainConfig // Chain configuration.
	logger *logrus.Logger     // Logger for logging events.

	clientMutex sync.RWMutex // Mutex for client.
	client      *rpc.Client  // Solana RPC client.

	signerMutex sync.RWMutex   // Mutex for signer.
	signer      sol.PrivateKey // Key for signing transactions.
	hasSigner   bool
}

// NewSolanaChain creates a new Solana chain implementation.
//
// Parameters:
// - config: the chain configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.Chain: a new Solana chain instance.
// - error: an error if any issue occurs during creation.
func NewSolanaChain(config *types.ChainConfig, logger *logrus.Logger) (types.Chain, error) {
	chain := &solana{
		config: config,
		logger: logger,
		client: rpc.New(config.RpcUrl),
	}

	builder := chainmanager.NewChainBuilder(config)

	if config.PrivateKey != "" {
		key, err := sol.PrivateKeyFromBase58(config.PrivateKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse private key")
		}

		chain.signerMutex.Lock()
		chain.signer = key
		chain.hasSigner = true
		chain.signerMutex.Unlock()

		builder.WithTransactionSender(chain)
	}

	builder.WithTransactionWatcher(chain)
	builder.WithBalanceProvider(chain)

	return builder.Build(), nil
}

// Close releases the RPC client. The chain must not be used afterwards.
func (s *solana) Close() {
	s.clientMutex.Lock()
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
	s.clientMutex.Unlock()
}

// GetClient returns the Solana RPC client.
func (s *solana) GetClient() *rpc.Client {
	s.clientMutex.RLock()
	defer s.clientMutex.RUnlock()
	return s.client
}
