package execution

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ClipFinance/intents-solver/locker"
	"github.com/ClipFinance/intents-solver/oneclick"
	"github.com/ClipFinance/intents-solver/swapmonitor"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	chains map[string]types.Chain
}

func (r *stubRegistry) Add(ctx context.Context, config *types.ChainConfig) error { return nil }

func (r *stubRegistry) Get(chain string) types.Chain { return r.chains[chain] }

func (r *stubRegistry) Supported() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	return names
}

func (r *stubRegistry) Remove(chain string) { delete(r.chains, chain) }

func newTestOrchestrator(t *testing.T, registry types.ChainRegistry) *Orchestrator {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	locks := locker.New("", logger)
	t.Cleanup(locks.Close)

	provider := &staticProvider{status: types.SwapStatusProcessing}
	tracker := swapmonitor.NewTracker(provider, nil, logger)
	t.Cleanup(tracker.Stop)

	return NewOrchestrator(locks, registry, oneclick.NewClient("", logger), tracker, logger)
}

type staticProvider struct {
	status types.SwapStatus
}

func (p *staticProvider) FetchSwapStatus(ctx context.Context, depositAddress string) (*swapmonitor.StatusUpdate, error) {
	return &swapmonitor.StatusUpdate{Status: p.status}, nil
}

func TestExecuteBusyWhenIntentLocked(t *testing.T) {
	orch := newTestOrchestrator(t, &stubRegistry{})

	ctx := context.Background()
	require.True(t, orch.locks.Lock(ctx, "intent:intent-1", time.Minute))

	result := orch.Execute(ctx, &types.ExecutionRequest{
		IntentID:    "intent-1",
		OriginChain: "arbitrum",
	})

	assert.Equal(t, types.ExecutionStatusBusy, result.Status)
	assert.NotEmpty(t, result.Message)
}

func TestExecuteUnsupportedChainReleasesLock(t *testing.T) {
	orch := newTestOrchestrator(t, &stubRegistry{})

	ctx := context.Background()
	result := orch.Execute(ctx, &types.ExecutionRequest{
		IntentID:    "intent-2",
		OriginChain: "dogechain",
	})

	require.Equal(t, types.ExecutionStatusFailed, result.Status)
	assert.Equal(t, "unsupported_origin_chain", result.Reason)
	assert.Contains(t, result.Message, "dogechain")

	// The failure path must not leave the intent lock held.
	assert.True(t, orch.locks.Lock(ctx, "intent:intent-2", time.Minute))
}
