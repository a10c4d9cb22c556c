// Package connectionmonitor keeps the solver bus connection alive with
// periodic health checks.
package connectionmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/ClipFinance/intents-solver/solverbus"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// healthCheckInterval defines interval between connection health checks
	healthCheckInterval = 30 * time.Second
)

// ConnectionMonitor represents connection state monitoring interface
type ConnectionMonitor interface {
	// Start starts connection monitoring
	Start(ctx context.Context) error
	// Stop stops connection monitoring
	Stop()
}

// BusConnection is the solver bus surface the monitor drives.
type BusConnection interface {
	// GetStatus reports the current connection state.
	GetStatus() solverbus.Status
	// Reconnect drops the current connection and dials again.
	Reconnect()
}

type connectionMonitor struct {
	client       BusConnection
	logger       *logrus.Logger
	stopChan     chan struct{}
	isMonitoring bool
	monitorMutex sync.RWMutex
}

// NewConnectionMonitor creates a new connection monitor instance.
//
// Parameters:
// - client: the bus connection to monitor.
// - logger: the logger for logging purposes.
//
// Returns:
// - ConnectionMonitor: the new connection monitor instance.
func NewConnectionMonitor(client BusConnection, logger *logrus.Logger) ConnectionMonitor {
	return &connectionMonitor{
		client:       client,
		logger:       logger,
		stopChan:     make(chan struct{}),
		isMonitoring: false,
	}
}

// Start starts connection monitoring.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - error: an error if the connection monitor is already running.
func (m *connectionMonitor) Start(ctx context.Context) error {
	m.monitorMutex.Lock()
	if m.isMonitoring {
		m.monitorMutex.Unlock()
		return errors.New("connection monitor is already running")
	}
	m.isMonitoring = true
	m.monitorMutex.Unlock()

	go m.monitorConnection(ctx)
	return nil
}

// Stop stops connection monitoring.
func (m *connectionMonitor) Stop() {
	m.monitorMutex.Lock()
	defer m.monitorMutex.Unlock()

	if !m.isMonitoring {
		return
	}

	close(m.stopChan)
	m.isMonitoring = false
}

// monitorConnection monitors the connection state and triggers a
// reconnect when the bus is enabled but not connected.
//
// Parameters:
// - ctx: the context for managing the request.
func (m *connectionMonitor) monitorConnection(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Connection monitoring stopped due to context cancellation")
			return

		case <-m.stopChan:
			m.logger.Info("Connection monitoring stopped")
			return

		case <-ticker.C:
			m.checkAndReconnect()
		}
	}
}

// checkAndReconnect checks the connection state and triggers a reconnect
// if the bus is enabled but disconnected.
func (m *connectionMonitor) checkAndReconnect() {
	status := m.client.GetStatus()

	if !status.Enabled {
		return
	}

	if !status.Connected {
		m.logger.WithField("url", status.URL).Warn("Solver bus disconnected, triggering reconnect")
		m.client.Reconnect()
		return
	}

	m.logger.Debug("Solver bus connection healthy")
}
