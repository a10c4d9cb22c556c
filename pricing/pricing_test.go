package pricing

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// deadFeed is an endpoint that always fails, to force fallback paths.
func deadFeed(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func binanceFeed(t *testing.T, prices map[string]string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		price, ok := prices[r.URL.Query().Get("contractAddress")]
		if !ok {
			fmt.Fprint(w, `{"data":{}}`)
			return
		}
		fmt.Fprintf(w, `{"data":{"priceInUsd":"%s"}}`, price)
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func okxFeed(t *testing.T, closePrice string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":"0","data":[["1700000000000","1","2","0.5","%s","100"]]}`, closePrice)
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestResolverFeedPrecedence(t *testing.T) {
	t.Run("binance primary", func(t *testing.T) {
		resolver := NewRateResolver(
			binanceFeed(t, map[string]string{"0xdac17f958d2ee523a2206206994597c13d831ec7": "1.01"}),
			okxFeed(t, "9.99"),
			testLogger(),
		)

		price, ok := resolver.GetTokenPriceUsd("0xdac17f958d2ee523a2206206994597c13d831ec7")
		require.True(t, ok)
		assert.Equal(t, 1.01, price)
	})

	t.Run("okx backup", func(t *testing.T) {
		resolver := NewRateResolver(deadFeed(t), okxFeed(t, "3200.5"), testLogger())

		price, ok := resolver.GetTokenPriceUsd("eth.omft.near")
		require.True(t, ok)
		assert.Equal(t, 3200.5, price)
	})

	t.Run("static fallback", func(t *testing.T) {
		resolver := NewRateResolver(deadFeed(t), deadFeed(t), testLogger())

		price, ok := resolver.GetTokenPriceUsd("btc.omft.near")
		require.True(t, ok)
		assert.Equal(t, 98000.0, price)
	})

	t.Run("unpriceable token", func(t *testing.T) {
		resolver := NewRateResolver(deadFeed(t), deadFeed(t), testLogger())

		_, ok := resolver.GetTokenPriceUsd("unknown.token.near")
		assert.False(t, ok)
	})
}

func TestResolverCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"data":{"priceInUsd":"2.0"}}`)
	}))
	t.Cleanup(server.Close)

	resolver := NewRateResolver(server.URL, deadFeed(t), testLogger())

	for i := 0; i < 3; i++ {
		price, ok := resolver.GetTokenPriceUsd("wrap.near")
		require.True(t, ok)
		assert.Equal(t, 2.0, price)
	}
	assert.Equal(t, 1, calls, "subsequent lookups must be served from cache")

	resolver.ClearCache()
	_, ok := resolver.GetTokenPriceUsd("wrap.near")
	require.True(t, ok)
	assert.Equal(t, 2, calls)

	assert.Equal(t, map[string]float64{"wrap.near": 2.0}, resolver.CachedPrices())
}

func TestResolverRuntimeMapping(t *testing.T) {
	feed := binanceFeed(t, map[string]string{"0xcustom": "42"})
	resolver := NewRateResolver(feed, deadFeed(t), testLogger())

	_, ok := resolver.GetTokenPriceUsd("custom.token.near")
	require.False(t, ok)

	resolver.AddTokenMapping("custom.token.near", "1", "0xcustom")
	price, ok := resolver.GetTokenPriceUsd("custom.token.near")
	require.True(t, ok)
	assert.Equal(t, 42.0, price)

	resolver.SetTokenDecimals("custom.token.near", 8)
	assert.Equal(t, 8, resolver.TokenDecimals("custom.token.near"))
	assert.Equal(t, 18, resolver.TokenDecimals("never-seen"))
}

func TestResolverBridgedFormFallsBackToBareAddress(t *testing.T) {
	feed := binanceFeed(t, map[string]string{"0xbare000000000000000000000000000000000000": "1.5"})
	resolver := NewRateResolver(feed, deadFeed(t), testLogger())

	// Mappings registered under the bare address (as the inventory config
	// does) must also resolve the bridged omft identifier.
	resolver.AddTokenMapping("0xbare000000000000000000000000000000000000", "42161", "0xbare000000000000000000000000000000000000")
	resolver.SetTokenDecimals("0xbare000000000000000000000000000000000000", 6)

	price, ok := resolver.GetTokenPriceUsd("arb-0xbare000000000000000000000000000000000000.omft.near")
	require.True(t, ok)
	assert.Equal(t, 1.5, price)
	assert.Equal(t, 6, resolver.TokenDecimals("arb-0xbare000000000000000000000000000000000000.omft.near"))

	// The built-in bare arbitrum USDC entry is reachable the same way.
	assert.Equal(t, 6, resolver.TokenDecimals("arb-0xaf88d065e77c8cc2239327c5edb3a432268e5831.omft.near"))

	// A malformed bridged form with no token segment stays unpriceable.
	_, ok = resolver.GetTokenPriceUsd("arb-.omft.near")
	assert.False(t, ok)
}

func TestCalculateQuoteDeterministic(t *testing.T) {
	// Two six-decimal stables, origin at $1.00 and destination at $2.00:
	// 1.0 origin is worth $1.00, minus the 0.5% markup is $0.995, which
	// buys 0.4975 of the destination, i.e. 497500 raw units.
	feed := binanceFeed(t, map[string]string{
		"0xdac17f958d2ee523a2206206994597c13d831ec7": "1.0",
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": "2.0",
	})
	resolver := NewRateResolver(feed, deadFeed(t), testLogger())
	pricer := NewPricer(resolver, 0.005, testLogger())

	quote, err := pricer.CalculateQuote(
		"nep141:eth-0xdac17f958d2ee523a2206206994597c13d831ec7.omft.near",
		"nep141:eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near",
		"1000000",
	)
	require.NoError(t, err)
	assert.Equal(t, "497500", quote.AmountOut)
	assert.Equal(t, 2.0, quote.Rate)
}

func TestCalculateQuoteErrors(t *testing.T) {
	resolver := NewRateResolver(deadFeed(t), deadFeed(t), testLogger())
	pricer := NewPricer(resolver, 0, testLogger())

	assert.Equal(t, DefaultMarkupPct, pricer.MarkupPct())

	t.Run("unpriceable origin", func(t *testing.T) {
		_, err := pricer.CalculateQuote("nep141:unknown.near", "nep141:btc.omft.near", "100")
		assert.Error(t, err)
	})

	t.Run("unpriceable destination", func(t *testing.T) {
		_, err := pricer.CalculateQuote("nep141:btc.omft.near", "nep141:unknown.near", "100")
		assert.Error(t, err)
	})

	t.Run("invalid amount", func(t *testing.T) {
		_, err := pricer.CalculateQuote("nep141:btc.omft.near", "nep141:wrap.near", "abc")
		assert.Error(t, err)
	})
}

func TestFormatRawAmount(t *testing.T) {
	assert.Equal(t, "497500", formatRawAmount(497500.9))
	assert.Equal(t, "0", formatRawAmount(-3))
	// Large raw amounts must not render in exponent notation.
	assert.NotContains(t, formatRawAmount(1e24), "e")
}
