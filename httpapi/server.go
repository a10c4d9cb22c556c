// Package httpapi exposes the solver's control surface: dry quotes,
// execution, swap status, bus control, and inventory management.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ClipFinance/intents-solver/execution"
	"github.com/ClipFinance/intents-solver/inventory"
	"github.com/ClipFinance/intents-solver/nearrpc"
	"github.com/ClipFinance/intents-solver/oneclick"
	"github.com/ClipFinance/intents-solver/solverbus"
	"github.com/ClipFinance/intents-solver/swapmonitor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Server wires the control routes to the solver components. Business
// failures are reported as HTTP 200 with a status field; only transport
// level problems (bad JSON, missing parameters) use error codes.
type Server struct {
	logger *logrus.Logger
	router chi.Router

	bridge    *oneclick.Client
	executor  *execution.Orchestrator
	bus       *solverbus.Client
	ledger    *inventory.Ledger
	tracker   *swapmonitor.Tracker
	near      *nearrpc.Client
	accountID string
	markupPct float64
}

// Deps carries the collaborators the control surface exposes.
type Deps struct {
	Bridge    *oneclick.Client
	Executor  *execution.Orchestrator
	Bus       *solverbus.Client
	Ledger    *inventory.Ledger
	Tracker   *swapmonitor.Tracker
	Near      *nearrpc.Client
	AccountID string
	MarkupPct float64
}

// NewServer creates the control surface server.
func NewServer(deps Deps, logger *logrus.Logger) *Server {
	s := &Server{
		logger:    logger,
		bridge:    deps.Bridge,
		executor:  deps.Executor,
		bus:       deps.Bus,
		ledger:    deps.Ledger,
		tracker:   deps.Tracker,
		near:      deps.Near,
		accountID: deps.AccountID,
		markupPct: deps.MarkupPct,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler for the control surface.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/quote/cross-chain", s.handleCrossChainQuote)
	r.Get("/tokens/supported", s.handleSupportedTokens)

	r.Post("/execute/cross-chain", s.handleExecuteCrossChain)
	r.Get("/swap/status", s.handleSwapStatus)

	r.Route("/solver-bus", func(r chi.Router) {
		r.Get("/status", s.handleBusStatus)
		r.Post("/reconnect", s.handleBusReconnect)
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Get("/summary", s.handleInventorySummary)
		r.Post("/sync-token", s.handleInventorySyncToken)
		r.Post("/sync-all", s.handleInventorySyncAll)
		r.Post("/reload", s.handleInventoryReload)
		r.Get("/balance", s.handleInventoryBalance)
	})

	return r
}

// respondJSON writes a JSON body with HTTP 200. The control surface
// reports business failures inside the body, not via status codes.
func (s *Server) respondJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) respondFailed(w http.ResponseWriter, err error) {
	s.respondJSON(w, map[string]string{
		"status": "failed",
		"error":  err.Error(),
	})
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
