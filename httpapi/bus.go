package httpapi

import "net/http"

// handleBusStatus reports the solver bus connection state.
func (s *Server) handleBusStatus(w http.ResponseWriter, r *http.Request) {
	status := s.bus.GetStatus()
	s.respondJSON(w, map[string]interface{}{
		"status":    "ok",
		"enabled":   status.Enabled,
		"connected": status.Connected,
		"url":       status.URL,
	})
}

// handleBusReconnect manually triggers a bus reconnection.
func (s *Server) handleBusReconnect(w http.ResponseWriter, r *http.Request) {
	s.bus.Reconnect()
	s.respondJSON(w, map[string]string{
		"status":  "ok",
		"message": "WebSocket reconnection triggered",
	})
}
