package types

import (
	"strings"

	"github.com/pkg/errors"
)

// NativeTokenSentinel is the token address used by multi-token asset
// identifiers to denote the chain's native asset (BNB, AVAX, etc.).
const NativeTokenSentinel = "11111111111111111111"

// HomeChain is the chain an asset identifier without a chain prefix
// belongs to.
const HomeChain = "near"

// chainPrefixes maps the short chain prefix embedded in bridged asset
// identifiers to the canonical chain name. Unmapped prefixes pass through
// unchanged.
var chainPrefixes = map[string]string{
	"arb":    "arbitrum",
	"eth":    "ethereum",
	"sol":    "solana",
	"btc":    "bitcoin",
	"poly":   "polygon",
	"avax":   "avalanche",
	"bnb":    "bsc",
	"op":     "optimism",
	"base":   "base",
	"aurora": "aurora",
}

// ParsedAsset is the (chain, token) pair encoded in an asset identifier.
type ParsedAsset struct {
	Chain string
	Token string
}

// ParseAssetIdentifier splits a defuse asset identifier into its canonical
// chain name and bare token address.
//
// Identifiers without a chain-prefix separator are native to the home
// chain: "nep141:usdt.tether-token.near" -> {near, usdt.tether-token.near}.
// Bridged identifiers carry the chain prefix before the first dash:
// "nep141:arb-0xaf88...omft.near" -> {arbitrum, 0xaf88...}.
//
// Parameters:
// - assetID: the defuse asset identifier.
//
// Returns:
// - ParsedAsset: the canonical chain name and token address.
// - error: an error if the identifier has no token segment.
func ParseAssetIdentifier(assetID string) (ParsedAsset, error) {
	withoutPrefix := strings.TrimPrefix(assetID, "nep141:")

	if !strings.Contains(withoutPrefix, "-") {
		if withoutPrefix == "" {
			return ParsedAsset{}, errors.Errorf("invalid asset identifier: %s", assetID)
		}
		return ParsedAsset{Chain: HomeChain, Token: withoutPrefix}, nil
	}

	parts := strings.SplitN(withoutPrefix, "-", 2)
	if len(parts) < 2 || parts[1] == "" {
		return ParsedAsset{}, errors.Errorf("invalid asset identifier: %s", assetID)
	}

	chain := parts[0]
	if mapped, ok := chainPrefixes[chain]; ok {
		chain = mapped
	}

	token := strings.TrimSuffix(parts[1], ".omft.near")

	return ParsedAsset{Chain: chain, Token: token}, nil
}

// ExtractTokenAddress reduces a defuse asset identifier to the token
// address used for price lookups.
//
// Supported schemes:
// - "nep141:<token>" -> "<token>"
// - "nep245:<contract>:<chainId>_<address>" -> "<address>" ("native" for
//   the sentinel address)
// Anything else falls back to the last colon-separated segment.
func ExtractTokenAddress(assetID string) string {
	parts := strings.Split(assetID, ":")

	switch parts[0] {
	case "nep141":
		if len(parts) > 1 {
			return parts[1]
		}
	case "nep245":
		if len(parts) > 2 {
			chainToken := strings.SplitN(parts[2], "_", 2)
			if len(chainToken) == 2 {
				if chainToken[1] == NativeTokenSentinel {
					return "native"
				}
				return chainToken[1]
			}
		}
	}

	return parts[len(parts)-1]
}
