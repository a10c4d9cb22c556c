package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/spf13/viper"
)

// Config holds the solver process configuration.
type Config struct {
	// HTTP control surface listen address.
	ListenAddr string

	// Solver bus connection.
	BusURL         string
	BusEnabled     bool
	SimulationMode bool

	// Quote pricing.
	MarkupPct float64

	// NEP-413 signing identity.
	DefuseContract string
	NearAccountID  string
	NearPrivateKey string
	NearRpcUrl     string

	// Capacity ledger document.
	InventoryPath string

	// 1Click bridge aggregator.
	OneClickJWT string

	// Price feeds (overridable for tests).
	BinancePriceURL string
	OkxPriceURL     string

	// Optional backends.
	RedisURL    string
	DatabaseURL string

	// Custody chains discovered from CHAIN_<NAME>_* environment variables.
	Chains map[string]*types.ChainConfig
}

// chainNames lists every chain a custody key may be configured for.
var chainNames = []string{
	"NEAR", "ETHEREUM", "ARBITRUM", "POLYGON", "AVALANCHE",
	"BSC", "OPTIMISM", "BASE", "SOLANA", "BITCOIN", "AURORA",
}

// evmChainIDs maps canonical EVM chain names to their numeric chain ids.
var evmChainIDs = map[string]uint64{
	"ethereum":  1,
	"arbitrum":  42161,
	"polygon":   137,
	"avalanche": 43114,
	"bsc":       56,
	"optimism":  10,
	"base":      8453,
	"aurora":    1313161554,
}

// Load reads configuration from environment variables and an optional
// config file.
func Load() (*Config, error) {
	viper.SetConfigName(".intents-solver")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	viper.SetDefault("listen_addr", ":3000")
	viper.SetDefault("solver_bus_ws_url", "wss://solver-relay-v2.chaindefuser.com/ws")
	viper.SetDefault("solver_bus_enabled", false)
	viper.SetDefault("solver_bus_simulation", false)
	viper.SetDefault("markup_pct", 0.005)
	viper.SetDefault("defuse_contract", "intents.near")
	viper.SetDefault("inventory_config_path", "./inventory.json")
	viper.SetDefault("near_rpc_url", "https://rpc.mainnet.near.org")
	viper.SetDefault("binance_price_url", "https://web3.binance.com/bapi/defi/v1/public/wallet-direct/buw/wallet/token/price/info")
	viper.SetDefault("okx_price_url", "https://web3.okx.com/priapi/v5/dex/token/market/dex-token-hlc-candles")

	viper.SetEnvPrefix("SOLVER")
	viper.AutomaticEnv()

	// Config file is optional.
	_ = viper.ReadInConfig()

	cfg := &Config{
		ListenAddr:      viper.GetString("listen_addr"),
		BusURL:          viper.GetString("solver_bus_ws_url"),
		BusEnabled:      viper.GetBool("solver_bus_enabled"),
		SimulationMode:  viper.GetBool("solver_bus_simulation"),
		MarkupPct:       viper.GetFloat64("markup_pct"),
		DefuseContract:  viper.GetString("defuse_contract"),
		NearAccountID:   viper.GetString("near_account_id"),
		NearRpcUrl:      viper.GetString("near_rpc_url"),
		InventoryPath:   viper.GetString("inventory_config_path"),
		OneClickJWT:     viper.GetString("oneclick_jwt_token"),
		BinancePriceURL: viper.GetString("binance_price_url"),
		OkxPriceURL:     viper.GetString("okx_price_url"),
		RedisURL:        viper.GetString("redis_url"),
		DatabaseURL:     viper.GetString("database_url"),
		Chains:          loadChainConfigs(),
	}

	if near, ok := cfg.Chains["near"]; ok {
		cfg.NearPrivateKey = near.PrivateKey
	}

	return cfg, nil
}

// loadChainConfigs discovers custody chain credentials from
// CHAIN_<NAME>_PRIVATE_KEY / CHAIN_<NAME>_RPC_URL / CHAIN_<NAME>_NETWORK_ID
// environment variables. A chain without a private key is not configured.
func loadChainConfigs() map[string]*types.ChainConfig {
	chains := make(map[string]*types.ChainConfig)

	for _, name := range chainNames {
		privateKey := os.Getenv(fmt.Sprintf("CHAIN_%s_PRIVATE_KEY", name))
		if privateKey == "" {
			continue
		}

		canonical := strings.ToLower(name)
		chains[canonical] = &types.ChainConfig{
			Name:       canonical,
			ChainType:  types.ChainTypeForName(canonical),
			ChainID:    evmChainIDs[canonical],
			RpcUrl:     os.Getenv(fmt.Sprintf("CHAIN_%s_RPC_URL", name)),
			PrivateKey: privateKey,
			NetworkID:  os.Getenv(fmt.Sprintf("CHAIN_%s_NETWORK_ID", name)),
		}
	}

	return chains
}

// SupportedChains returns the canonical names of all chains with custody
// keys configured.
func (c *Config) SupportedChains() []string {
	names := make([]string, 0, len(c.Chains))
	for name := range c.Chains {
		names = append(names, name)
	}
	return names
}

// IsChainSupported reports whether a custody key exists for the chain.
func (c *Config) IsChainSupported(chain string) bool {
	_, ok := c.Chains[strings.ToLower(chain)]
	return ok
}
