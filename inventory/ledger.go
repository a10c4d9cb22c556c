// Package inventory implements the solver's capacity ledger: per-chain,
// per-token balances with a minimum-balance floor, reserved optimistically
// when a quote is signed and released on any non-fill outcome.
//
// The ledger assumes a single solver process. Check-then-reserve is safe
// because both halves run synchronously inside one bus event handler;
// horizontal scaling would require moving reservations into an atomic
// external store.
package inventory

import (
	"encoding/json"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TokenBalance is one balance line of the ledger. Balances are
// arbitrary-precision integers in the token's smallest unit.
type TokenBalance struct {
	Address    string
	Symbol     string
	Decimals   int
	Balance    *big.Int
	MinBalance *big.Int
	Enabled    bool
}

// ChainInventory groups the balance lines of one chain.
type ChainInventory struct {
	Chain   string
	Enabled bool
	Tokens  map[string]*TokenBalance
}

// TokenConfig is one token entry of the backing inventory document.
type TokenConfig struct {
	Address        string `json:"address"`
	Symbol         string `json:"symbol"`
	Decimals       int    `json:"decimals"`
	MinBalance     string `json:"minBalance"`
	CurrentBalance string `json:"currentBalance"`
	Enabled        bool   `json:"enabled"`
	PriceChainID   string `json:"priceChainId,omitempty"`
	PriceAddress   string `json:"priceAddress,omitempty"`
}

// ChainConfig is one chain entry of the backing inventory document.
type ChainConfig struct {
	Enabled bool          `json:"enabled"`
	Tokens  []TokenConfig `json:"tokens"`
}

// Document is the declarative inventory configuration.
type Document struct {
	Chains map[string]ChainConfig `json:"chains"`
}

// BalanceFetcher queries live balances from the ledger-query collaborator
// (the intents contract on NEAR).
type BalanceFetcher interface {
	FetchTokenBalance(tokenID string, accountID string) (*big.Int, error)
}

// TokenSummary is the observability view of one balance line.
type TokenSummary struct {
	Symbol     string `json:"symbol"`
	Balance    string `json:"balance"`
	MinBalance string `json:"minBalance"`
	Enabled    bool   `json:"enabled"`
}

// ChainSummary is the observability view of one chain.
type ChainSummary struct {
	Enabled bool                    `json:"enabled"`
	Tokens  map[string]TokenSummary `json:"tokens"`
}

// Ledger is the capacity ledger. All access goes through a single RWMutex;
// reserve and release never cross a suspension point.
type Ledger struct {
	logger     *logrus.Logger
	configPath string

	mu        sync.RWMutex
	inventory map[string]*ChainInventory
	rawConfig *Document
}

// NewLedger creates a ledger backed by the given inventory document and
// loads it. A missing document yields an empty ledger, not an error.
func NewLedger(configPath string, logger *logrus.Logger) *Ledger {
	l := &Ledger{
		logger:     logger,
		configPath: configPath,
		inventory:  make(map[string]*ChainInventory),
	}
	if err := l.load(); err != nil {
		logger.WithError(err).Error("Failed to load inventory config")
	}
	return l
}

// load reads and parses the backing document and replaces the in-memory
// state atomically.
func (l *Ledger) load() error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.WithField("path", l.configPath).Warn("Inventory config not found, using empty inventory")
			return nil
		}
		return errors.Wrap(err, "failed to read inventory config")
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "failed to parse inventory config")
	}

	inventory := make(map[string]*ChainInventory, len(doc.Chains))
	for chain, chainConfig := range doc.Chains {
		tokens := make(map[string]*TokenBalance)

		if chainConfig.Enabled {
			for _, tokenConfig := range chainConfig.Tokens {
				balance, ok := new(big.Int).SetString(tokenConfig.CurrentBalance, 10)
				if !ok {
					l.logger.WithFields(logrus.Fields{
						"chain": chain,
						"token": tokenConfig.Address,
					}).Warn("Invalid currentBalance in inventory config, skipping token")
					continue
				}
				minBalance, ok := new(big.Int).SetString(tokenConfig.MinBalance, 10)
				if !ok {
					minBalance = big.NewInt(0)
				}

				tokens[strings.ToLower(tokenConfig.Address)] = &TokenBalance{
					Address:    tokenConfig.Address,
					Symbol:     tokenConfig.Symbol,
					Decimals:   tokenConfig.Decimals,
					Balance:    balance,
					MinBalance: minBalance,
					Enabled:    tokenConfig.Enabled,
				}
			}
		}

		inventory[strings.ToLower(chain)] = &ChainInventory{
			Chain:   chain,
			Enabled: chainConfig.Enabled,
			Tokens:  tokens,
		}
	}

	l.mu.Lock()
	l.inventory = inventory
	l.rawConfig = &doc
	l.mu.Unlock()

	for chain, chainInventory := range inventory {
		if !chainInventory.Enabled || len(chainInventory.Tokens) == 0 {
			continue
		}
		enabled := 0
		for _, token := range chainInventory.Tokens {
			if token.Enabled {
				enabled++
			}
		}
		l.logger.WithFields(logrus.Fields{
			"chain":  chain,
			"tokens": enabled,
		}).Info("Inventory chain loaded")
	}

	return nil
}

// CanProvideQuote reports whether the solver can pay out amountOut of the
// destination asset without breaching the token's minimum balance. Fails
// closed on disabled chains and tokens, unknown entries, malformed asset
// identifiers and insufficient balance. Fractional amounts are truncated
// toward zero before comparison.
func (l *Ledger) CanProvideQuote(originAsset, destinationAsset, amountOut string) bool {
	parsed, err := types.ParseAssetIdentifier(destinationAsset)
	if err != nil {
		l.logger.WithError(err).Debug("Cannot parse destination asset")
		return false
	}

	amount, ok := parseAmount(amountOut)
	if !ok {
		l.logger.WithField("amount", amountOut).Debug("Cannot parse quote amount")
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	chainInventory := l.inventory[parsed.Chain]
	if chainInventory == nil || !chainInventory.Enabled {
		l.logger.WithField("chain", parsed.Chain).Debug("Chain not enabled in inventory")
		return false
	}

	token := chainInventory.Tokens[strings.ToLower(parsed.Token)]
	if token == nil || !token.Enabled {
		l.logger.WithFields(logrus.Fields{
			"chain": parsed.Chain,
			"token": parsed.Token,
		}).Debug("Token not enabled in inventory")
		return false
	}

	if token.Balance.Cmp(amount) < 0 {
		l.logger.WithFields(logrus.Fields{
			"chain": parsed.Chain,
			"token": parsed.Token,
			"have":  token.Balance.String(),
			"need":  amount.String(),
		}).Warn("Insufficient inventory")
		return false
	}

	remaining := new(big.Int).Sub(token.Balance, amount)
	if remaining.Cmp(token.MinBalance) < 0 {
		l.logger.WithFields(logrus.Fields{
			"chain":     parsed.Chain,
			"token":     parsed.Token,
			"min":       token.MinBalance.String(),
			"remaining": remaining.String(),
		}).Warn("Reservation would fall below minimum balance")
		return false
	}

	return true
}

// ReserveInventory decrements the destination token's balance by amount.
// The caller is expected to have checked capacity via CanProvideQuote in
// the same event-processing step; this method does not re-validate
// sufficiency. Returns false only if the chain or token entry is missing.
func (l *Ledger) ReserveInventory(quoteID, destinationAsset, amount string) bool {
	parsed, err := types.ParseAssetIdentifier(destinationAsset)
	if err != nil {
		return false
	}

	value, valid := parseAmount(amount)
	if !valid {
		return false
	}

	// The entry is resolved under the write lock so a concurrent reload
	// cannot leave the mutation on a replaced map's object.
	l.mu.Lock()
	token := l.findTokenLocked(parsed)
	if token == nil {
		l.mu.Unlock()
		return false
	}
	token.Balance.Sub(token.Balance, value)
	newBalance := token.Balance.String()
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"quoteID": quoteID,
		"chain":   parsed.Chain,
		"token":   parsed.Token,
		"amount":  value.String(),
		"balance": newBalance,
	}).Info("Reserved inventory")

	return true
}

// ReleaseInventory returns a previously reserved amount to the destination
// token's balance. No-op if the entry is missing.
func (l *Ledger) ReleaseInventory(quoteID, destinationAsset, amount string) {
	parsed, err := types.ParseAssetIdentifier(destinationAsset)
	if err != nil {
		return
	}

	value, valid := parseAmount(amount)
	if !valid {
		return
	}

	l.mu.Lock()
	token := l.findTokenLocked(parsed)
	if token == nil {
		l.mu.Unlock()
		return
	}
	token.Balance.Add(token.Balance, value)
	newBalance := token.Balance.String()
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"quoteID": quoteID,
		"chain":   parsed.Chain,
		"token":   parsed.Token,
		"amount":  value.String(),
		"balance": newBalance,
	}).Info("Released inventory")
}

// UpdateBalance overwrites a token's balance, typically after a custody
// transfer or a contract sync. No-op if the entry is missing.
func (l *Ledger) UpdateBalance(chain, token, newBalance string) {
	value, ok := new(big.Int).SetString(newBalance, 10)
	if !ok {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	chainInventory := l.inventory[strings.ToLower(chain)]
	if chainInventory == nil {
		return
	}
	entry := chainInventory.Tokens[strings.ToLower(token)]
	if entry == nil {
		return
	}

	entry.Balance = value
	l.logger.WithFields(logrus.Fields{
		"chain":   chain,
		"token":   token,
		"balance": newBalance,
	}).Info("Updated token balance")
}

// GetInventorySummary returns a read-only snapshot of all enabled chains.
func (l *Ledger) GetInventorySummary() map[string]ChainSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := make(map[string]ChainSummary)
	for chain, chainInventory := range l.inventory {
		if !chainInventory.Enabled {
			continue
		}
		tokens := make(map[string]TokenSummary, len(chainInventory.Tokens))
		for address, token := range chainInventory.Tokens {
			tokens[address] = TokenSummary{
				Symbol:     token.Symbol,
				Balance:    token.Balance.String(),
				MinBalance: token.MinBalance.String(),
				Enabled:    token.Enabled,
			}
		}
		summary[chain] = ChainSummary{Enabled: true, Tokens: tokens}
	}
	return summary
}

// ReloadInventory clears and rebuilds the ledger from the backing
// document. Readers never observe partial state: the new map is swapped in
// under the write lock.
func (l *Ledger) ReloadInventory() error {
	l.logger.Info("Reloading inventory configuration")
	return l.load()
}

// RawConfig returns the parsed backing document, used to seed price-lookup
// mappings.
func (l *Ledger) RawConfig() *Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rawConfig
}

// findTokenLocked resolves the ledger entry for a parsed asset. The
// caller must hold l.mu.
func (l *Ledger) findTokenLocked(parsed types.ParsedAsset) *TokenBalance {
	chainInventory := l.inventory[parsed.Chain]
	if chainInventory == nil {
		return nil
	}
	return chainInventory.Tokens[strings.ToLower(parsed.Token)]
}

// parseAmount parses a decimal amount string into a big integer,
// truncating any fractional part toward zero.
func parseAmount(amount string) (*big.Int, bool) {
	if idx := strings.IndexAny(amount, ".eE"); idx >= 0 {
		f, _, err := big.ParseFloat(amount, 10, 256, big.ToZero)
		if err != nil {
			return nil, false
		}
		value, _ := f.Int(nil)
		return value, true
	}

	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, false
	}
	return value, true
}
