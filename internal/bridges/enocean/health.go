package enocean

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// defaultHealthInterval is used when HealthReporterConfig.Interval is zero.
const defaultHealthInterval = 30 * time.Second

// HealthReporter publishes bridge status to MQTT at regular intervals.
type HealthReporter struct {
	bridgeID  string
	version   string
	address   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	gateway   Connector
	repeats   func() uint64
	onReport  func(HealthMessage)

	countsMu sync.RWMutex
	devices  int
	entities int

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Gateway provides connection statistics.
	Gateway Connector

	// GatewayAddress is reported as the connection address.
	GatewayAddress string

	// RepeatsSuppressed reports the repeated-telegram filter count (optional).
	RepeatsSuppressed func() uint64

	// OnReport receives every message the reporter publishes (optional).
	OnReport func(HealthMessage)
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		address:   cfg.GatewayAddress,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		gateway:   cfg.Gateway,
		repeats:   cfg.RepeatsSuppressed,
		onReport:  cfg.OnReport,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetCounts updates the number of managed devices and entities.
func (h *HealthReporter) SetCounts(devices, entities int) {
	h.countsMu.Lock()
	h.devices = devices
	h.entities = entities
	h.countsMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.gateway == nil || !h.gateway.IsConnected() {
		return HealthDegraded, "gateway disconnected"
	}
	return HealthHealthy, ""
}

// Snapshot builds the health message without publishing it.
func (h *HealthReporter) Snapshot() HealthMessage {
	status, reason := h.determineStatus()
	return h.buildMessage(status, reason)
}

func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	h.countsMu.RLock()
	devices, entities := h.devices, h.entities
	h.countsMu.RUnlock()

	var stats GatewayStats
	if h.gateway != nil {
		stats = h.gateway.Stats()
	}

	msg := NewHealthMessage(h.bridgeID, h.version, status, stats, devices, entities, h.startTime)
	msg.Reason = reason
	if msg.Connection != nil {
		msg.Connection.Address = h.address
	}
	if h.repeats != nil && msg.Statistics != nil {
		msg.Statistics.RepeatsSuppressed = h.repeats()
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	msg := h.buildMessage(status, reason)
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := h.publisher.Publish(HealthTopic(), payload, 1, true); err != nil {
		return err
	}
	if h.onReport != nil {
		h.onReport(msg)
	}
	return nil
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
