package solverbus

import (
	"sync"
	"time"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ClipFinance/intents-solver/inventory"
	"github.com/ClipFinance/intents-solver/pricing"
	"github.com/sirupsen/logrus"
)

// QuoteSender submits signed quotes back to the relay.
type QuoteSender interface {
	SendQuoteResponse(quote *types.SignedQuote) error
}

// CommitmentSigner produces the signed commitment for a priced quote.
// Satisfied by *nep413.Signer.
type CommitmentSigner interface {
	CreateSignedQuote(quoteID string, req *types.QuoteRequest, calculatedAmount string) (*types.SignedQuote, error)
}

// TransferExecutor attempts settlement payout when a quote fills.
type TransferExecutor interface {
	IsChainConfigured(chain string) bool
}

// Coordinator drives a quote from bus request to terminal status. For
// each request it prices the swap, checks and reserves capacity, signs a
// commitment and responds; status events either release the reservation
// (expired, cancelled) or hand off to settlement (filled).
//
// Reservations and the metadata map are mutated only from the bus read
// loop, so check-then-reserve is atomic with respect to other quotes.
type Coordinator struct {
	logger         *logrus.Logger
	pricer         *pricing.Pricer
	ledger         *inventory.Ledger
	signer         CommitmentSigner
	sender         QuoteSender
	executor       TransferExecutor
	simulationMode bool

	mu           sync.RWMutex
	activeQuotes map[string]*types.QuoteMetadata
}

// NewCoordinator wires the quote pipeline. A nil signer disables quoting
// (requests are logged and skipped); a nil executor skips payout attempts
// on fill. In simulation mode quotes are priced, reserved and signed but
// never sent.
func NewCoordinator(
	pricer *pricing.Pricer,
	ledger *inventory.Ledger,
	signer CommitmentSigner,
	sender QuoteSender,
	executor TransferExecutor,
	simulationMode bool,
	logger *logrus.Logger,
) *Coordinator {
	if simulationMode {
		logger.Warn("Simulation mode enabled, quotes will not be sent to the solver bus")
	}
	return &Coordinator{
		logger:         logger,
		pricer:         pricer,
		ledger:         ledger,
		signer:         signer,
		sender:         sender,
		executor:       executor,
		simulationMode: simulationMode,
		activeQuotes:   make(map[string]*types.QuoteMetadata),
	}
}

// SetSender wires the outbound quote channel. Called once during startup
// to break the construction cycle between the coordinator and the bus
// client it handles events for.
func (c *Coordinator) SetSender(sender QuoteSender) {
	c.mu.Lock()
	c.sender = sender
	c.mu.Unlock()
}

// HandleQuoteRequest runs the full quoting pipeline for one bus request.
// Unpriceable pairs and insufficient capacity skip the quote silently;
// the relay treats missing responses as declines.
func (c *Coordinator) HandleQuoteRequest(req *types.QuoteRequest) {
	log := c.logger.WithFields(logrus.Fields{
		"quoteID":  req.QuoteID,
		"assetIn":  req.AssetIn,
		"assetOut": req.AssetOut,
		"amount":   req.Amount(),
	})
	log.Info("Quote request received")

	if c.signer == nil {
		log.Warn("No signer configured, skipping quote")
		return
	}

	c.mu.RLock()
	_, active := c.activeQuotes[req.QuoteID]
	c.mu.RUnlock()
	if active {
		log.Warn("Duplicate quote request, ignoring")
		return
	}

	quote, err := c.pricer.CalculateQuote(req.AssetIn, req.AssetOut, req.Amount())
	if err != nil {
		log.WithError(err).Warn("Skipping quote, pricing failed")
		return
	}
	log.WithFields(logrus.Fields{
		"amountOut": quote.AmountOut,
		"rate":      quote.Rate,
	}).Info("Quote priced")

	if !c.ledger.CanProvideQuote(req.AssetIn, req.AssetOut, quote.AmountOut) {
		log.Warn("Insufficient inventory, skipping quote")
		return
	}

	if !c.ledger.ReserveInventory(req.QuoteID, req.AssetOut, quote.AmountOut) {
		log.Warn("Failed to reserve inventory, skipping quote")
		return
	}

	c.mu.Lock()
	c.activeQuotes[req.QuoteID] = &types.QuoteMetadata{
		QuoteID:     req.QuoteID,
		OriginAsset: req.AssetIn,
		DestAsset:   req.AssetOut,
		AmountOut:   quote.AmountOut,
		CreatedAt:   time.Now().UnixMilli(),
	}
	c.mu.Unlock()

	signed, err := c.signer.CreateSignedQuote(req.QuoteID, req, quote.AmountOut)
	if err != nil {
		log.WithError(err).Error("Failed to sign quote, rolling back reservation")
		c.rollback(req.QuoteID, req.AssetOut, quote.AmountOut)
		return
	}

	if c.simulationMode {
		log.WithField("quoteOutput", signed.QuoteOutput).Warn("Simulation mode, quote not sent")
		return
	}

	// The sender is wired after construction, so it is read under the
	// same lock SetSender writes under.
	c.mu.RLock()
	sender := c.sender
	c.mu.RUnlock()
	if sender == nil {
		log.Error("No quote sender wired, rolling back reservation")
		c.rollback(req.QuoteID, req.AssetOut, quote.AmountOut)
		return
	}

	if err := sender.SendQuoteResponse(signed); err != nil {
		log.WithError(err).Error("Failed to send quote response, rolling back reservation")
		c.rollback(req.QuoteID, req.AssetOut, quote.AmountOut)
		return
	}
	log.Info("Quote response sent")
}

// HandleQuoteStatus applies a lifecycle event to an active quote. Events
// for unknown quote ids are dropped.
func (c *Coordinator) HandleQuoteStatus(event *types.QuoteStatusEvent) {
	log := c.logger.WithFields(logrus.Fields{
		"quoteID": event.QuoteID,
		"status":  event.Status,
	})
	log.Info("Quote status received")

	c.mu.RLock()
	metadata, ok := c.activeQuotes[event.QuoteID]
	c.mu.RUnlock()
	if !ok {
		log.Warn("No metadata for quote status event")
		return
	}

	switch event.Status {
	case types.QuoteStatusFilled:
		log.Info("Quote filled")

		parsed, err := types.ParseAssetIdentifier(metadata.DestAsset)
		if err != nil {
			log.WithError(err).Error("Cannot parse destination asset of filled quote")
		} else if c.executor == nil || !c.executor.IsChainConfigured(parsed.Chain) {
			log.WithField("chain", parsed.Chain).Warn("No transfer executor for destination chain, settlement skipped")
		} else {
			// Settlement payout happens through the execution surface
			// once the fill carries a recipient; the reservation stays
			// consumed either way.
			log.WithField("chain", parsed.Chain).Info("Destination chain configured for settlement")
		}
		c.deleteQuote(event.QuoteID)

	case types.QuoteStatusExpired, types.QuoteStatusCancelled:
		log.Info("Releasing reservation")
		c.ledger.ReleaseInventory(event.QuoteID, metadata.DestAsset, metadata.AmountOut)
		c.deleteQuote(event.QuoteID)

	case types.QuoteStatusPending:
		// Still in flight, nothing to do.

	default:
		log.Warn("Unknown quote status")
	}
}

// ActiveQuotes returns a snapshot of in-flight quote metadata.
func (c *Coordinator) ActiveQuotes() []*types.QuoteMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quotes := make([]*types.QuoteMetadata, 0, len(c.activeQuotes))
	for _, metadata := range c.activeQuotes {
		quotes = append(quotes, metadata)
	}
	return quotes
}

func (c *Coordinator) rollback(quoteID, destAsset, amountOut string) {
	c.ledger.ReleaseInventory(quoteID, destAsset, amountOut)
	c.deleteQuote(quoteID)
}

func (c *Coordinator) deleteQuote(quoteID string) {
	c.mu.Lock()
	delete(c.activeQuotes, quoteID)
	c.mu.Unlock()
}
