package inventory

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// nep141AssetID renders the contract-side asset identifier for a ledger
// entry. NEAR-chain tokens map directly to their nep141 contract; foreign
// tokens are held as omni-bridge representations under a chain prefix.
func nep141AssetID(chain, token string) string {
	if chain == "near" {
		return "nep141:" + token
	}
	return "nep141:" + chain + "-" + token + ".omft.near"
}

// SyncTokenBalance refreshes one ledger line from the live balance held on
// the intents contract for the solver account and returns the new balance.
func (l *Ledger) SyncTokenBalance(fetcher BalanceFetcher, accountID, chain, token string) (string, error) {
	assetID := nep141AssetID(strings.ToLower(chain), strings.ToLower(token))

	balance, err := fetcher.FetchTokenBalance(assetID, accountID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch balance for %s", assetID)
	}

	l.UpdateBalance(chain, token, balance.String())
	return balance.String(), nil
}

// SyncAllBalances refreshes every enabled ledger line from the intents
// contract. Individual failures are logged and skipped so one unreachable
// token does not block the rest of the sync.
func (l *Ledger) SyncAllBalances(fetcher BalanceFetcher, accountID string) {
	type line struct {
		chain string
		token string
	}

	l.mu.RLock()
	var lines []line
	for chain, chainInventory := range l.inventory {
		if !chainInventory.Enabled {
			continue
		}
		for address, token := range chainInventory.Tokens {
			if token.Enabled {
				lines = append(lines, line{chain: chain, token: address})
			}
		}
	}
	l.mu.RUnlock()

	for _, entry := range lines {
		if _, err := l.SyncTokenBalance(fetcher, accountID, entry.chain, entry.token); err != nil {
			l.logger.WithError(err).WithFields(logrus.Fields{
				"chain": entry.chain,
				"token": entry.token,
			}).Warn("Balance sync failed")
		}
	}
}
