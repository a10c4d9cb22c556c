// Package swapmonitor tracks in-flight settlements against the 1Click
// bridge until they reach a terminal state.
package swapmonitor

import (
	"context"
	"sync"
	"time"

	solvererrors "github.com/ClipFinance/intents-solver/common/errors"
	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ClipFinance/intents-solver/swapstore"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPollInterval is how often a tracked swap is re-queried.
	DefaultPollInterval = 10 * time.Second
	// DefaultMonitorCeiling bounds how long any swap stays under watch.
	DefaultMonitorCeiling = time.Hour
	// DefaultCleanupRetention keeps completed records for a day.
	DefaultCleanupRetention = 24 * time.Hour
)

// StatusUpdate is one observation of a swap from the bridge.
type StatusUpdate struct {
	Status      types.SwapStatus
	FinalTxHash string
}

// StatusProvider queries the bridge for the state of a swap.
type StatusProvider interface {
	FetchSwapStatus(ctx context.Context, depositAddress string) (*StatusUpdate, error)
}

// RegisterParams describes a settlement entering monitoring.
type RegisterParams struct {
	DepositMemo      string
	IntentID         string
	OriginChain      string
	DestinationChain string
	Amount           string
	Recipient        string
	DepositTxHash    string
}

// Tracker holds the settlement records and polls the bridge for each
// active one on its own goroutine. Records are mirrored to Postgres when
// a store is configured; persistence failures are logged, never fatal.
type Tracker struct {
	logger       *logrus.Logger
	provider     StatusProvider
	store        *swapstore.Store
	pollInterval time.Duration
	ceiling      time.Duration

	mu      sync.RWMutex
	swaps   map[string]*types.SwapRecord
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewTracker creates a tracker. The store may be nil for memory-only
// operation.
func NewTracker(provider StatusProvider, store *swapstore.Store, logger *logrus.Logger) *Tracker {
	return &Tracker{
		logger:       logger,
		provider:     provider,
		store:        store,
		pollInterval: DefaultPollInterval,
		ceiling:      DefaultMonitorCeiling,
		swaps:        make(map[string]*types.SwapRecord),
		cancels:      make(map[string]context.CancelFunc),
	}
}

// RegisterSwap records a new settlement and starts its polling loop.
// Registering an address already under watch only refreshes the record.
func (t *Tracker) RegisterSwap(depositAddress string, params RegisterParams) {
	now := time.Now()
	record := &types.SwapRecord{
		DepositAddress:   depositAddress,
		DepositMemo:      params.DepositMemo,
		IntentID:         params.IntentID,
		Status:           types.SwapStatusPendingDeposit,
		OriginChain:      params.OriginChain,
		DestinationChain: params.DestinationChain,
		Amount:           params.Amount,
		Recipient:        params.Recipient,
		CreatedAt:        now,
		UpdatedAt:        now,
		DepositTxHash:    params.DepositTxHash,
	}

	t.mu.Lock()
	t.swaps[depositAddress] = record
	alreadyWatched := t.cancels[depositAddress] != nil
	var ctx context.Context
	if !alreadyWatched {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), t.ceiling)
		t.cancels[depositAddress] = cancel
	}
	t.mu.Unlock()

	t.persist(record)

	if alreadyWatched {
		return
	}

	t.logger.WithFields(logrus.Fields{
		"depositAddress": depositAddress,
		"intentID":       params.IntentID,
	}).Info("Swap registered for monitoring")

	t.wg.Add(1)
	go t.watch(ctx, depositAddress)
}

// watch polls one swap until it terminates or the ceiling expires.
func (t *Tracker) watch(ctx context.Context, depositAddress string) {
	defer t.wg.Done()
	defer t.stopWatching(depositAddress)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.WithField("depositAddress", depositAddress).Warn("Swap monitoring ceiling reached")
			return
		case <-ticker.C:
			if terminal := t.refresh(ctx, depositAddress); terminal {
				return
			}
		}
	}
}

// refresh fetches the current state and applies it, reporting whether
// the swap reached a terminal status.
func (t *Tracker) refresh(ctx context.Context, depositAddress string) bool {
	update, err := t.provider.FetchSwapStatus(ctx, depositAddress)

	t.mu.Lock()
	record, ok := t.swaps[depositAddress]
	if !ok {
		t.mu.Unlock()
		return true
	}

	record.UpdatedAt = time.Now()
	if err != nil {
		record.Error = err.Error()
		t.mu.Unlock()
		t.persist(record)
		return false
	}

	record.Error = ""
	record.Status = update.Status
	if update.FinalTxHash != "" {
		record.FinalTxHash = update.FinalTxHash
	}

	terminal := update.Status.IsTerminal()
	if terminal {
		completed := time.Now()
		record.CompletedAt = &completed
	}
	snapshot := *record
	t.mu.Unlock()

	t.persist(&snapshot)

	if terminal {
		t.logger.WithFields(logrus.Fields{
			"depositAddress": depositAddress,
			"status":         snapshot.Status,
		}).Info("Swap completed")
	}
	return terminal
}

// MonitorSwap polls a swap synchronously until it terminates or the
// budget elapses. Returns ErrMonitorTimeout on budget exhaustion, which
// callers must treat as unknown, not failed.
func (t *Tracker) MonitorSwap(ctx context.Context, depositAddress string, budget time.Duration) (*types.SwapRecord, error) {
	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		if record, ok := t.GetSwap(depositAddress); ok && record.Status.IsTerminal() {
			return record, nil
		}
		if time.Now().After(deadline) {
			return nil, solvererrors.ErrMonitorTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			t.refresh(ctx, depositAddress)
		}
	}
}

// RefreshSwapStatus forces one immediate poll and returns the record.
func (t *Tracker) RefreshSwapStatus(ctx context.Context, depositAddress string) (*types.SwapRecord, error) {
	t.refresh(ctx, depositAddress)

	record, ok := t.GetSwap(depositAddress)
	if !ok {
		return nil, solvererrors.ErrSwapNotFound
	}
	return record, nil
}

// GetSwap returns a copy of the record for a deposit address.
func (t *Tracker) GetSwap(depositAddress string) (*types.SwapRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	record, ok := t.swaps[depositAddress]
	if !ok {
		return nil, false
	}
	snapshot := *record
	return &snapshot, true
}

// GetSwapByIntentID returns the record registered under an intent id.
func (t *Tracker) GetSwapByIntentID(intentID string) (*types.SwapRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, record := range t.swaps {
		if record.IntentID == intentID {
			snapshot := *record
			return &snapshot, true
		}
	}
	return nil, false
}

// ActiveSwaps returns all records that have not terminated.
func (t *Tracker) ActiveSwaps() []*types.SwapRecord {
	return t.filter(func(r *types.SwapRecord) bool { return !r.Status.IsTerminal() })
}

// AllSwaps returns every tracked record.
func (t *Tracker) AllSwaps() []*types.SwapRecord {
	return t.filter(func(r *types.SwapRecord) bool { return true })
}

// SwapsByStatus returns records currently in the given status.
func (t *Tracker) SwapsByStatus(status types.SwapStatus) []*types.SwapRecord {
	return t.filter(func(r *types.SwapRecord) bool { return r.Status == status })
}

// Cleanup drops completed records older than the retention period and
// returns how many were removed.
func (t *Tracker) Cleanup(retention time.Duration) int {
	if retention <= 0 {
		retention = DefaultCleanupRetention
	}
	cutoff := time.Now().Add(-retention)

	t.mu.Lock()
	var removed int
	for address, record := range t.swaps {
		if record.CompletedAt != nil && record.CompletedAt.Before(cutoff) {
			delete(t.swaps, address)
			if cancel := t.cancels[address]; cancel != nil {
				cancel()
			}
			removed++
		}
	}
	t.mu.Unlock()

	if removed > 0 {
		t.logger.WithField("removed", removed).Info("Cleaned up completed swaps")
	}
	return removed
}

// Stop cancels all polling loops and waits for them to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) stopWatching(depositAddress string) {
	t.mu.Lock()
	if cancel := t.cancels[depositAddress]; cancel != nil {
		cancel()
		delete(t.cancels, depositAddress)
	}
	t.mu.Unlock()
}

func (t *Tracker) filter(keep func(*types.SwapRecord) bool) []*types.SwapRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var records []*types.SwapRecord
	for _, record := range t.swaps {
		if keep(record) {
			snapshot := *record
			records = append(records, &snapshot)
		}
	}
	return records
}

// persist mirrors a record to Postgres, best-effort.
func (t *Tracker) persist(record *types.SwapRecord) {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.store.Upsert(ctx, record); err != nil {
		t.logger.WithError(err).Warn("Failed to persist swap record")
	}
}
