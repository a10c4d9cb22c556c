package swapmonitor

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	solvererrors "github.com/ClipFinance/intents-solver/common/errors"
	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/pkg/errors"
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

// scriptedProvider serves a fixed sequence of updates, repeating the
// last one once the script runs out.
type scriptedProvider struct {
	mu      sync.Mutex
	script  []StatusUpdate
	err     error
	fetches int
}

func (p *scriptedProvider) FetchSwapStatus(ctx context.Context, depositAddress string) (*StatusUpdate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	if p.err != nil {
		return nil, p.err
	}
	idx := p.fetches - 1
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	update := p.script[idx]
	return &update, nil
}

func (p *scriptedProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

func newTestTracker(provider StatusProvider) *Tracker {
	tracker := NewTracker(provider, nil, testLogger())
	tracker.pollInterval = 5 * time.Millisecond
	return tracker
}

func registerParams() RegisterParams {
	return RegisterParams{
		IntentID:         "intent-1",
		OriginChain:      "arbitrum",
		DestinationChain: "base",
		Amount:           "1000000",
		Recipient:        "0xrecipient",
		DepositTxHash:    "0xdeposit",
	}
}

func TestWatchStopsOnTerminalStatus(t *testing.T) {
	provider := &scriptedProvider{script: []StatusUpdate{
		{Status: types.SwapStatusProcessing},
		{Status: types.SwapStatusSuccess, FinalTxHash: "0xfinal"},
	}}
	tracker := newTestTracker(provider)
	defer tracker.Stop()

	tracker.RegisterSwap("addr-1", registerParams())

	require.Eventually(t, func() bool {
		record, ok := tracker.GetSwap("addr-1")
		return ok && record.Status == types.SwapStatusSuccess
	}, 2*time.Second, 5*time.Millisecond)

	record, _ := tracker.GetSwap("addr-1")
	assert.Equal(t, "0xfinal", record.FinalTxHash)
	require.NotNil(t, record.CompletedAt)

	// Polling must stop once terminal: the fetch count settles.
	settled := provider.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, provider.count(), "terminal swap must not be polled again")
}

func TestMonitorSwapBudgetTimeout(t *testing.T) {
	provider := &scriptedProvider{script: []StatusUpdate{
		{Status: types.SwapStatusProcessing},
	}}
	tracker := newTestTracker(provider)
	defer tracker.Stop()

	tracker.RegisterSwap("addr-1", registerParams())

	_, err := tracker.MonitorSwap(context.Background(), "addr-1", 30*time.Millisecond)
	assert.ErrorIs(t, err, solvererrors.ErrMonitorTimeout)

	// A timeout leaves the swap in its last observed state, not failed.
	record, ok := tracker.GetSwap("addr-1")
	require.True(t, ok)
	assert.NotEqual(t, types.SwapStatusFailed, record.Status)
}

func TestMonitorSwapTerminal(t *testing.T) {
	provider := &scriptedProvider{script: []StatusUpdate{
		{Status: types.SwapStatusSuccess},
	}}
	tracker := newTestTracker(provider)
	defer tracker.Stop()

	tracker.RegisterSwap("addr-1", registerParams())

	record, err := tracker.MonitorSwap(context.Background(), "addr-1", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.SwapStatusSuccess, record.Status)
}

func TestProviderErrorRecordedNonTerminal(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("bridge unreachable")}
	tracker := newTestTracker(provider)
	defer tracker.Stop()

	tracker.RegisterSwap("addr-1", registerParams())

	require.Eventually(t, func() bool {
		record, ok := tracker.GetSwap("addr-1")
		return ok && record.Error != ""
	}, 2*time.Second, 5*time.Millisecond)

	record, _ := tracker.GetSwap("addr-1")
	assert.Contains(t, record.Error, "bridge unreachable")
	assert.Equal(t, types.SwapStatusPendingDeposit, record.Status)
}

func TestQueries(t *testing.T) {
	provider := &scriptedProvider{script: []StatusUpdate{{Status: types.SwapStatusProcessing}}}
	tracker := NewTracker(provider, nil, testLogger())
	// Long interval: no background refresh interferes with this test.
	tracker.pollInterval = time.Hour
	defer tracker.Stop()

	tracker.RegisterSwap("addr-1", registerParams())
	other := registerParams()
	other.IntentID = "intent-2"
	tracker.RegisterSwap("addr-2", other)

	record, ok := tracker.GetSwapByIntentID("intent-2")
	require.True(t, ok)
	assert.Equal(t, "addr-2", record.DepositAddress)

	_, ok = tracker.GetSwapByIntentID("intent-unknown")
	assert.False(t, ok)

	assert.Len(t, tracker.AllSwaps(), 2)
	assert.Len(t, tracker.ActiveSwaps(), 2)
	assert.Len(t, tracker.SwapsByStatus(types.SwapStatusPendingDeposit), 2)
	assert.Empty(t, tracker.SwapsByStatus(types.SwapStatusSuccess))
}

func TestCleanup(t *testing.T) {
	provider := &scriptedProvider{script: []StatusUpdate{{Status: types.SwapStatusSuccess}}}
	tracker := newTestTracker(provider)
	defer tracker.Stop()

	tracker.RegisterSwap("addr-1", registerParams())

	require.Eventually(t, func() bool {
		record, ok := tracker.GetSwap("addr-1")
		return ok && record.Status.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)

	// Fresh completions survive a day-long retention.
	assert.Zero(t, tracker.Cleanup(DefaultCleanupRetention))

	removed := tracker.Cleanup(time.Nanosecond)
	assert.Equal(t, 1, removed)
	_, ok := tracker.GetSwap("addr-1")
	assert.False(t, ok)
}
