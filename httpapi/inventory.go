package httpapi

import "net/http"

// handleInventorySummary returns the ledger's view of enabled chains and
// tokens.
func (s *Server) handleInventorySummary(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    s.ledger.GetInventorySummary(),
	})
}

// handleInventorySyncToken refreshes one ledger line from the intents
// contract. Chain and token come from query parameters.
func (s *Server) handleInventorySyncToken(w http.ResponseWriter, r *http.Request) {
	chain := r.URL.Query().Get("chain")
	token := r.URL.Query().Get("token")
	if chain == "" || token == "" {
		s.respondJSON(w, map[string]interface{}{
			"success": false,
			"error":   "chain and token are required",
		})
		return
	}

	newBalance, err := s.ledger.SyncTokenBalance(s.near, s.accountID, chain, token)
	if err != nil {
		s.respondJSON(w, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.respondJSON(w, map[string]interface{}{
		"success":    true,
		"chain":      chain,
		"token":      token,
		"newBalance": newBalance,
	})
}

// handleInventorySyncAll refreshes every enabled ledger line.
func (s *Server) handleInventorySyncAll(w http.ResponseWriter, r *http.Request) {
	s.ledger.SyncAllBalances(s.near, s.accountID)
	s.respondJSON(w, map[string]interface{}{
		"success": true,
		"message": "All token balances synced",
		"data":    s.ledger.GetInventorySummary(),
	})
}

// handleInventoryReload re-reads the inventory document from disk.
func (s *Server) handleInventoryReload(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.ReloadInventory(); err != nil {
		s.respondJSON(w, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.respondJSON(w, map[string]interface{}{
		"success": true,
		"data":    s.ledger.GetInventorySummary(),
	})
}

// handleInventoryBalance fetches a live balance from the intents contract
// without touching the local ledger.
func (s *Server) handleInventoryBalance(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("tokenId")
	if tokenID == "" {
		s.respondJSON(w, map[string]interface{}{
			"success": false,
			"error":   "tokenId is required",
		})
		return
	}

	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		accountID = s.accountID
	}

	balance, err := s.near.FetchTokenBalance(tokenID, accountID)
	if err != nil {
		s.respondJSON(w, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.respondJSON(w, map[string]interface{}{
		"success":   true,
		"tokenId":   tokenID,
		"accountId": accountID,
		"balance":   balance.String(),
	})
}
