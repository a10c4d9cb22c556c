package httpapi

import (
	"net/http"
	"time"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/google/uuid"
)

// handleExecuteCrossChain runs the settlement pipeline for an accepted
// intent. The result status (processing, busy, failed) is always
// delivered with HTTP 200.
func (s *Server) handleExecuteCrossChain(w http.ResponseWriter, r *http.Request) {
	var req types.ExecutionRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondFailed(w, err)
		return
	}

	if req.IntentID == "" {
		req.IntentID = uuid.NewString()
	}

	result := s.executor.Execute(r.Context(), &req)
	s.respondJSON(w, result)
}

// handleSwapStatus reports the live bridge-side state of a swap by its
// deposit address.
func (s *Server) handleSwapStatus(w http.ResponseWriter, r *http.Request) {
	depositAddress := r.URL.Query().Get("depositAddress")
	if depositAddress == "" {
		s.respondJSON(w, map[string]string{
			"status": "failed",
			"error":  "depositAddress is required",
		})
		return
	}

	resp, err := s.bridge.GetSwapStatus(r.Context(), depositAddress)
	if err != nil {
		s.respondFailed(w, err)
		return
	}

	s.respondJSON(w, map[string]interface{}{
		"status":     "ok",
		"swapStatus": resp.GetStatus(),
		"details":    resp.GetSwapDetails(),
		"updatedAt":  resp.GetUpdatedAt().Format(time.RFC3339),
	})
}
