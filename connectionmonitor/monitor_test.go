package connectionmonitor

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/ClipFinance/intents-solver/solverbus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	connected  atomic.Bool
	enabled    atomic.Bool
	reconnects atomic.Int64
}

func (b *fakeBus) GetStatus() solverbus.Status {
	return solverbus.Status{
		Enabled:   b.enabled.Load(),
		Connected: b.connected.Load(),
		URL:       "ws://bus.test",
	}
}

func (b *fakeBus) Reconnect() {
	b.reconnects.Add(1)
	b.connected.Store(true)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestStartRejectsDoubleStart(t *testing.T) {
	monitor := NewConnectionMonitor(&fakeBus{}, testLogger())
	defer monitor.Stop()

	ctx := context.Background()
	require.NoError(t, monitor.Start(ctx))
	assert.Error(t, monitor.Start(ctx))
}

func TestCheckAndReconnect(t *testing.T) {
	bus := &fakeBus{}
	monitor := NewConnectionMonitor(bus, testLogger()).(*connectionMonitor)

	// Disabled bus is left alone.
	monitor.checkAndReconnect()
	assert.Equal(t, int64(0), bus.reconnects.Load())

	// Enabled but disconnected triggers a reconnect.
	bus.enabled.Store(true)
	monitor.checkAndReconnect()
	assert.Equal(t, int64(1), bus.reconnects.Load())

	// Healthy connection is not touched again.
	monitor.checkAndReconnect()
	assert.Equal(t, int64(1), bus.reconnects.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	monitor := NewConnectionMonitor(&fakeBus{}, testLogger())
	require.NoError(t, monitor.Start(context.Background()))

	monitor.Stop()
	monitor.Stop()
}
