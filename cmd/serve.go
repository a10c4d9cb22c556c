package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ClipFinance/intents-solver/chainmanager"
	"github.com/ClipFinance/intents-solver/chains"
	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ClipFinance/intents-solver/config"
	"github.com/ClipFinance/intents-solver/connectionmonitor"
	"github.com/ClipFinance/intents-solver/execution"
	"github.com/ClipFinance/intents-solver/httpapi"
	"github.com/ClipFinance/intents-solver/inventory"
	"github.com/ClipFinance/intents-solver/locker"
	"github.com/ClipFinance/intents-solver/nearrpc"
	"github.com/ClipFinance/intents-solver/nep413"
	"github.com/ClipFinance/intents-solver/oneclick"
	"github.com/ClipFinance/intents-solver/pricing"
	"github.com/ClipFinance/intents-solver/solverbus"
	"github.com/ClipFinance/intents-solver/swapmonitor"
	"github.com/ClipFinance/intents-solver/swapstore"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the solver: bus listener, settlement engine, control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// registryExecutor reports chain support from the custody registry.
type registryExecutor struct {
	registry types.ChainRegistry
}

func (e *registryExecutor) IsChainConfigured(chain string) bool {
	return e.registry.Get(strings.ToLower(chain)) != nil
}

func runServe() error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Capacity ledger and pricing.
	ledger := inventory.NewLedger(cfg.InventoryPath, logger)

	resolver := pricing.NewRateResolver(cfg.BinancePriceURL, cfg.OkxPriceURL, logger)
	seedPriceMappings(resolver, ledger.RawConfig())
	pricer := pricing.NewPricer(resolver, cfg.MarkupPct, logger)

	// NEP-413 signing identity. Without one the solver still serves the
	// control API but never quotes.
	var signer *nep413.Signer
	if cfg.NearAccountID != "" && cfg.NearPrivateKey != "" {
		signer, err = nep413.NewSigner(cfg.NearAccountID, cfg.NearPrivateKey, cfg.DefuseContract, logger)
		if err != nil {
			return errors.Wrap(err, "failed to create signer")
		}
		logger.WithFields(logrus.Fields{
			"accountID": cfg.NearAccountID,
			"publicKey": signer.PublicKeyString(),
		}).Info("NEP-413 signer ready")
	} else {
		logger.Warn("No NEAR signing identity configured, quoting disabled")
	}

	// Custody chains.
	registry := chainmanager.NewChainRegistry(chains.NewChainFactory(), logger)
	for name, chainCfg := range cfg.Chains {
		if err := registry.Add(ctx, chainCfg); err != nil {
			logger.WithError(err).WithField("chain", name).Warn("Skipping custody chain")
		}
	}
	if supported := registry.Supported(); len(supported) > 0 {
		logger.WithField("chains", supported).Info("Custody chains configured")
	}

	// Settlement collaborators.
	bridge := oneclick.NewClient(cfg.OneClickJWT, logger)
	near := nearrpc.NewClient(cfg.NearRpcUrl, cfg.DefuseContract, logger)

	var store *swapstore.Store
	if cfg.DatabaseURL != "" {
		store, err = swapstore.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Warn("Swap store unavailable, records stay in memory")
			store = nil
		}
	}

	tracker := swapmonitor.NewTracker(swapmonitor.NewOneClickProvider(bridge), store, logger)
	defer tracker.Stop()

	locks := locker.New(cfg.RedisURL, logger)
	defer locks.Close()

	executor := execution.NewOrchestrator(locks, registry, bridge, tracker, logger)

	// Quote pipeline: bus client and coordinator reference each other, so
	// the outbound sender is wired after both exist.
	// A typed nil pointer would dodge the coordinator's nil-signer check.
	var commitments solverbus.CommitmentSigner
	if signer != nil {
		commitments = signer
	}
	coordinator := solverbus.NewCoordinator(
		pricer, ledger, commitments, nil,
		&registryExecutor{registry: registry},
		cfg.SimulationMode, logger,
	)
	bus := solverbus.NewClient(cfg.BusURL, cfg.BusEnabled, coordinator, logger)
	coordinator.SetSender(bus)
	bus.Start()
	defer bus.Stop()

	busMonitor := connectionmonitor.NewConnectionMonitor(bus, logger)
	if err := busMonitor.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start bus monitor")
	}
	defer busMonitor.Stop()

	// Control surface.
	api := httpapi.NewServer(httpapi.Deps{
		Bridge:    bridge,
		Executor:  executor,
		Bus:       bus,
		Ledger:    ledger,
		Tracker:   tracker,
		Near:      near,
		AccountID: cfg.NearAccountID,
		MarkupPct: cfg.MarkupPct,
	}, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("Control API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		return errors.Wrap(err, "control API failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedPriceMappings feeds the resolver the per-token price feed hints
// carried in the inventory document.
func seedPriceMappings(resolver *pricing.RateResolver, doc *inventory.Document) {
	if doc == nil {
		return
	}
	for _, chain := range doc.Chains {
		for _, token := range chain.Tokens {
			if token.Decimals > 0 {
				resolver.SetTokenDecimals(token.Address, token.Decimals)
			}
			if token.PriceChainID != "" && token.PriceAddress != "" {
				resolver.AddTokenMapping(token.Address, token.PriceChainID, token.PriceAddress)
			}
		}
	}
}
