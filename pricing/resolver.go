// Package pricing converts raw token amounts between assets using USD
// reference prices. Prices come from the Binance web3 wallet endpoint
// first, the OKX DEX candle endpoint second, and a static fallback table
// last, with a short-lived in-memory cache in front of both feeds.
package pricing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBinancePriceURL is the Binance web3 wallet token price endpoint.
	DefaultBinancePriceURL = "https://web3.binance.com/bapi/defi/v1/public/wallet-direct/buw/wallet/token/price/info"
	// DefaultOkxPriceURL is the OKX DEX candle endpoint used as backup feed.
	DefaultOkxPriceURL = "https://web3.okx.com/priapi/v5/dex/token/market/dex-token-hlc-candles"

	priceCacheTTL = 60 * time.Second
	feedTimeout   = 3 * time.Second
)

// TokenMapping locates a token on an external price feed.
type TokenMapping struct {
	ChainID string
	Address string
}

type cachedPrice struct {
	price     float64
	timestamp time.Time
}

// RateResolver resolves USD prices for token identifiers. Safe for
// concurrent use.
type RateResolver struct {
	logger     *logrus.Logger
	httpClient *http.Client
	binanceURL string
	okxURL     string

	mu             sync.RWMutex
	cache          map[string]cachedPrice
	tokenMapping   map[string]TokenMapping
	fallbackPrices map[string]float64
	decimals       map[string]int
}

// NewRateResolver creates a resolver pointed at the given feed endpoints.
// Empty URLs fall back to the production endpoints.
func NewRateResolver(binanceURL, okxURL string, logger *logrus.Logger) *RateResolver {
	if binanceURL == "" {
		binanceURL = DefaultBinancePriceURL
	}
	if okxURL == "" {
		okxURL = DefaultOkxPriceURL
	}

	return &RateResolver{
		logger:     logger,
		httpClient: &http.Client{Timeout: feedTimeout},
		binanceURL: binanceURL,
		okxURL:     okxURL,
		cache:      make(map[string]cachedPrice),
		tokenMapping: map[string]TokenMapping{
			// NEAR-native tokens priced via liquid reference markets.
			"usdt.tether-token.near": {ChainID: "56", Address: "0x55d398326f99059ff775485246999027b3197955"},
			"usdc.tether-token.near": {ChainID: "56", Address: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d"},
			"wrap.near":              {ChainID: "near", Address: "near"},
			"btc.omft.near":          {ChainID: "bitcoin", Address: "bitcoin"},

			// Ethereum bridged representations.
			"eth-0xdac17f958d2ee523a2206206994597c13d831ec7.omft.near": {ChainID: "1", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7"},
			"eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near": {ChainID: "1", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"},
			"eth.omft.near": {ChainID: "1", Address: "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"},

			// Bare EVM addresses.
			"0xdac17f958d2ee523a2206206994597c13d831ec7": {ChainID: "1", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7"},
			"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {ChainID: "1", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"},
			"0xaf88d065e77c8cc2239327c5edb3a432268e5831": {ChainID: "42161", Address: "0xaf88d065e77c8cc2239327c5edb3a432268e5831"},
			"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9": {ChainID: "42161", Address: "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9"},

			"native": {ChainID: "56", Address: "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"},
		},
		fallbackPrices: map[string]float64{
			"usdt.tether-token.near": 1.0,
			"usdc.tether-token.near": 1.0,
			"eth-0xdac17f958d2ee523a2206206994597c13d831ec7.omft.near": 1.0,
			"eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near": 1.0,
			"0xdac17f958d2ee523a2206206994597c13d831ec7":               1.0,
			"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48":               1.0,
			"0xaf88d065e77c8cc2239327c5edb3a432268e5831":               1.0,
			"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9":               1.0,
			"wrap.near":     5.0,
			"btc.omft.near": 98000.0,
			"eth.omft.near": 3500.0,
			"native":        600.0,
		},
		decimals: map[string]int{
			"usdt.tether-token.near": 6,
			"usdc.tether-token.near": 6,
			"eth-0xdac17f958d2ee523a2206206994597c13d831ec7.omft.near": 6,
			"eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near": 6,
			"0xdac17f958d2ee523a2206206994597c13d831ec7":               6,
			"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48":               6,
			"0xaf88d065e77c8cc2239327c5edb3a432268e5831":               6,
			"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9":               6,
			"wrap.near":     24,
			"btc.omft.near": 8,
			"native":        8,
		},
	}
}

// lookupKeys lists the identifiers a token can be registered under: the
// identifier itself, then the bare token address for bridged omft forms
// ("arb-0xaf88….omft.near" is also looked up as "0xaf88…"). Config-driven
// mappings key on the bare address.
func lookupKeys(tokenAddress string) []string {
	keys := []string{tokenAddress}
	if !strings.HasSuffix(tokenAddress, ".omft.near") || !strings.Contains(tokenAddress, "-") {
		return keys
	}
	parsed, err := types.ParseAssetIdentifier(tokenAddress)
	if err != nil || parsed.Token == "" || parsed.Token == tokenAddress {
		return keys
	}
	return append(keys, parsed.Token)
}

// GetTokenPriceUsd returns the USD price for a token identifier, or false
// when no feed and no fallback can price it. Results are cached for
// priceCacheTTL; a cached price is served regardless of feed health.
// Bridged omft identifiers also match mappings registered under their
// bare token address.
func (r *RateResolver) GetTokenPriceUsd(tokenAddress string) (float64, bool) {
	keys := lookupKeys(tokenAddress)

	r.mu.RLock()
	cached, hasCached := r.cache[tokenAddress]
	var mapping TokenMapping
	var hasMapping bool
	for _, key := range keys {
		if mapping, hasMapping = r.tokenMapping[key]; hasMapping {
			break
		}
	}
	r.mu.RUnlock()

	if hasCached && time.Since(cached.timestamp) < priceCacheTTL {
		return cached.price, true
	}

	if hasMapping {
		if price, ok := r.fetchFromBinance(mapping.ChainID, mapping.Address); ok {
			r.storePrice(tokenAddress, price)
			r.logger.WithFields(logrus.Fields{"token": tokenAddress, "price": price}).Info("Binance price resolved")
			return price, true
		}

		if price, ok := r.fetchFromOkx(mapping.ChainID, mapping.Address); ok {
			r.storePrice(tokenAddress, price)
			r.logger.WithFields(logrus.Fields{"token": tokenAddress, "price": price}).Info("OKX price resolved")
			return price, true
		}
	}

	r.mu.RLock()
	var fallback float64
	var hasFallback bool
	for _, key := range keys {
		if fallback, hasFallback = r.fallbackPrices[key]; hasFallback {
			break
		}
	}
	r.mu.RUnlock()

	if hasFallback {
		r.storePrice(tokenAddress, fallback)
		r.logger.WithFields(logrus.Fields{"token": tokenAddress, "price": fallback}).Warn("Using fallback price")
		return fallback, true
	}

	r.logger.WithField("token", tokenAddress).Warn("No price found for token")
	return 0, false
}

// TokenDecimals returns the configured decimals for a token identifier,
// defaulting to 18.
func (r *RateResolver) TokenDecimals(tokenAddress string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range lookupKeys(tokenAddress) {
		if d, ok := r.decimals[key]; ok {
			return d
		}
	}
	return 18
}

// AddTokenMapping registers or replaces a feed mapping at runtime.
func (r *RateResolver) AddTokenMapping(tokenAddress, chainID, contractAddress string) {
	r.mu.Lock()
	r.tokenMapping[tokenAddress] = TokenMapping{ChainID: chainID, Address: contractAddress}
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"token":   tokenAddress,
		"chainId": chainID,
		"address": contractAddress,
	}).Info("Added token price mapping")
}

// SetTokenDecimals registers or replaces the decimals for a token.
func (r *RateResolver) SetTokenDecimals(tokenAddress string, decimals int) {
	r.mu.Lock()
	r.decimals[tokenAddress] = decimals
	r.mu.Unlock()
}

// ClearCache drops all cached prices.
func (r *RateResolver) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string]cachedPrice)
	r.mu.Unlock()
	r.logger.Info("Price cache cleared")
}

// CachedPrices returns a snapshot of the cache, for the observability
// surface.
func (r *RateResolver) CachedPrices() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prices := make(map[string]float64, len(r.cache))
	for token, entry := range r.cache {
		prices[token] = entry.price
	}
	return prices
}

func (r *RateResolver) storePrice(tokenAddress string, price float64) {
	r.mu.Lock()
	r.cache[tokenAddress] = cachedPrice{price: price, timestamp: time.Now()}
	r.mu.Unlock()
}

type binancePriceResponse struct {
	Data struct {
		PriceInUsd string `json:"priceInUsd"`
	} `json:"data"`
}

func (r *RateResolver) fetchFromBinance(chainID, contractAddress string) (float64, bool) {
	url := fmt.Sprintf("%s?chainId=%s&contractAddress=%s", r.binanceURL, chainID, contractAddress)

	body, err := r.fetchJSON(url)
	if err != nil {
		r.logger.WithError(err).Debug("Binance price request failed")
		return 0, false
	}

	var parsed binancePriceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		r.logger.WithError(err).Debug("Binance price response malformed")
		return 0, false
	}

	price, err := strconv.ParseFloat(parsed.Data.PriceInUsd, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

type okxCandleResponse struct {
	Code string          `json:"code"`
	Data [][]json.Number `json:"data"`
}

// fetchFromOkx reads the close price of the latest one-minute candle.
// Candle rows are [timestamp, open, high, low, close, volume].
func (r *RateResolver) fetchFromOkx(chainID, contractAddress string) (float64, bool) {
	url := fmt.Sprintf("%s?chainId=%s&address=%s&after=%d&bar=1m&limit=1",
		r.okxURL, chainID, contractAddress, time.Now().UnixMilli())

	body, err := r.fetchJSON(url)
	if err != nil {
		r.logger.WithError(err).Debug("OKX price request failed")
		return 0, false
	}

	var parsed okxCandleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		r.logger.WithError(err).Debug("OKX price response malformed")
		return 0, false
	}

	if parsed.Code != "0" || len(parsed.Data) == 0 || len(parsed.Data[0]) < 5 {
		return 0, false
	}

	price, err := parsed.Data[0][4].Float64()
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

func (r *RateResolver) fetchJSON(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}
