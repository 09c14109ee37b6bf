package enocean

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bridge connects an EnOcean gateway to the Gray Logic MQTT bus.
// It handles:
//   - Dispatching received telegrams to the configured entities
//   - Publishing binary sensor state and button events to MQTT
//   - Answering state requests from Core
//   - Recording sightings and history (both optional)
//   - Health reporting and graceful shutdown
//
// Bridge implements Publisher and TelemetryPublisher for its own entities.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg        *Config
	mqtt       MQTTClient
	gateway    Connector
	health     *HealthReporter
	dispatcher *Dispatcher
	recorder   SightingRecorderInterface
	history    HistoryWriter
	repeats    *repeatFilter

	// State cache for change detection
	stateCache   map[string]bool
	stateCacheMu sync.RWMutex

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// SightingRecorderInterface records senders heard on the bus.
// This is optional - if nil, the bridge operates without recording.
type SightingRecorderInterface interface {
	RecordTelegram(t Telegram, known bool)
}

// HistoryWriter writes time-series points.
// Satisfied by *influxdb.Client. Optional.
type HistoryWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration.
	Config *Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Gateway is the gateway connection.
	Gateway Connector

	// GatewayAddress is reported in health messages.
	GatewayAddress string

	// Decoder overrides the default ProfileDecoder.
	Decoder Decoder

	// Logger is optional structured logger.
	Logger Logger

	// Recorder is optional sighting recorder.
	Recorder SightingRecorderInterface

	// History is optional time-series writer.
	History HistoryWriter

	// Version is reported in health messages.
	Version string
}

// NewBridge creates a new bridge instance and its entities.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("gateway client is required")
	}

	b := &Bridge{
		cfg:        opts.Config,
		mqtt:       opts.MQTTClient,
		gateway:    opts.Gateway,
		recorder:   opts.Recorder,
		history:    opts.History,
		stateCache: make(map[string]bool),
		done:       make(chan struct{}),
		logger:     opts.Logger,
	}

	if !opts.Config.History.Enabled {
		b.history = nil
	}
	if !opts.Config.Bridge.RecordSightings {
		b.recorder = nil
	}
	if w := opts.Config.GetRepeatWindow(); w > 0 {
		b.repeats = newRepeatFilter(w)
	}

	entities := Setup(SetupOptions{
		Config:    opts.Config,
		Decoder:   opts.Decoder,
		Publisher: b,
		Logger:    opts.Logger,
	})
	b.dispatcher = NewDispatcher(entities, opts.Logger)

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	hrc := HealthReporterConfig{
		BridgeID:       opts.Config.Bridge.ID,
		Version:        version,
		Interval:       opts.Config.GetHealthInterval(),
		Publisher:      opts.MQTTClient,
		Gateway:        opts.Gateway,
		GatewayAddress: opts.GatewayAddress,
	}
	if b.repeats != nil {
		hrc.RepeatsSuppressed = b.repeats.Suppressed
	}
	if b.history != nil {
		hrc.OnReport = b.recordHealth
	}
	b.health = NewHealthReporter(hrc)
	b.health.SetCounts(b.dispatcher.DeviceCount(), len(b.dispatcher.Entities()))
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
// This sets the telegram handler, subscribes to request topics,
// publishes discovery, and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.gateway.SetOnTelegram(b.handleTelegram)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	if b.cfg.Bridge.PublishDiscovery {
		if err := b.publishDiscovery(); err != nil {
			b.logError("failed to publish discovery", err)
		}
	}

	b.health.Start(ctx)

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"devices", b.dispatcher.DeviceCount(),
		"entities", len(b.dispatcher.Entities()))

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		b.gateway.SetOnTelegram(nil)
		b.health.Stop()
		if b.repeats != nil {
			b.repeats.Stop()
		}

		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// handleTelegram is the gateway callback. It runs on the gateway's single
// callback worker, so entities see telegrams one at a time in arrival order.
func (b *Bridge) handleTelegram(t Telegram) {
	select {
	case <-b.done:
		return
	default:
	}

	if b.repeats != nil && !b.repeats.Allow(t) {
		b.logDebug("suppressed repeated telegram", "sender", t.Sender.String(), "telegram", t.String())
		return
	}

	known := b.dispatcher.Knows(t.Sender)
	if b.recorder != nil {
		b.recorder.RecordTelegram(t, known)
	}

	if n := b.dispatcher.Dispatch(t); n == 0 {
		b.logDebug("telegram from unconfigured sender", "sender", t.Sender.String(), "telegram", t.String())
	}
}

// PublishState implements Publisher.
// Unchanged states are not re-published. A state only counts as published
// once the broker accepted it, so a failed publish is retried by the next
// telegram carrying the same state.
func (b *Bridge) PublishState(entityID string, on bool) {
	if b.statePublished(entityID, on) {
		return
	}

	e, ok := b.dispatcher.Entity(entityID)
	if !ok {
		return
	}
	snap := e.Snapshot()

	msg := NewStateMessage(snap, on)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state message", err)
		return
	}
	if err := b.mqtt.Publish(StateTopic(entityID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
		return
	}
	b.recordPublishedState(entityID, on)

	b.logDebug("state published", "entity_id", entityID, "state", msg.State)

	if b.history != nil {
		value := 0
		if on {
			value = 1
		}
		b.history.WritePointWithTime("enocean_state",
			map[string]string{"entity_id": entityID, "address": snap.Address.String(), "device_class": snap.DeviceClass},
			map[string]any{"on": value},
			msg.Timestamp)
	}
}

// FireEvent implements Publisher.
func (b *Bridge) FireEvent(entityID string, kind EventKind) {
	e, ok := b.dispatcher.Entity(entityID)
	if !ok {
		return
	}
	snap := e.Snapshot()

	ts := time.Now().UTC()
	if snap.LastEvent != nil {
		ts = snap.LastEvent.UTC()
	}
	msg := EventMessage{
		EventID:   uuid.New().String(),
		EntityID:  entityID,
		Timestamp: ts,
		EventType: string(kind),
		Channel:   string(snap.Channel),
		Protocol:  protocolName,
		Address:   snap.Address.String(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal event message", err)
		return
	}
	if err := b.mqtt.Publish(EventTopic(entityID), payload, 1, false); err != nil {
		b.logError("failed to publish event", err)
	}

	b.logDebug("event fired", "entity_id", entityID, "event_type", msg.EventType)

	if b.history != nil {
		b.history.WritePointWithTime("enocean_event",
			map[string]string{"entity_id": entityID, "address": msg.Address, "channel": msg.Channel},
			map[string]any{"event_type": msg.EventType},
			ts)
	}
}

// PublishTelemetry implements TelemetryPublisher.
// Only occupancy sensors carry measurements worth keeping.
func (b *Bridge) PublishTelemetry(entityID string, fields Fields) {
	if b.history == nil {
		return
	}
	f, ok := fields.(OccupancyFields)
	if !ok {
		return
	}
	b.history.WritePointWithTime("enocean_occupancy",
		map[string]string{"entity_id": entityID},
		map[string]any{
			"supply_voltage": f.SupplyVoltage,
			"illumination":   f.Illumination,
			"temperature":    f.Temperature,
		},
		time.Now().UTC())
}

// recordHealth writes gateway counters to history on every health report.
func (b *Bridge) recordHealth(msg HealthMessage) {
	if msg.Statistics == nil {
		return
	}
	connected := 0
	if msg.Connection != nil && msg.Connection.Status == "connected" {
		connected = 1
	}
	b.history.WritePointWithTime("enocean_gateway",
		map[string]string{"bridge": msg.Bridge},
		map[string]any{
			"connected":          connected,
			"frames_received":    msg.Statistics.FramesReceived,
			"frames_sent":        msg.Statistics.FramesSent,
			"bad_frames":         msg.Statistics.BadFrames,
			"telegrams_dropped":  msg.Statistics.TelegramsDropped,
			"repeats_suppressed": msg.Statistics.RepeatsSuppressed,
		},
		msg.Timestamp)
}

// statePublished reports whether on is the last state the broker accepted
// for entityID.
func (b *Bridge) statePublished(entityID string, on bool) bool {
	b.stateCacheMu.RLock()
	defer b.stateCacheMu.RUnlock()
	prev, seen := b.stateCache[entityID]
	return seen && prev == on
}

func (b *Bridge) recordPublishedState(entityID string, on bool) {
	b.stateCacheMu.Lock()
	b.stateCache[entityID] = on
	b.stateCacheMu.Unlock()
}

// ClearStateCache forgets published states so the next update is re-published.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	b.stateCache = make(map[string]bool)
	b.stateCacheMu.Unlock()
}

// publishDiscovery publishes the entity list, retained.
func (b *Bridge) publishDiscovery() error {
	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    b.cfg.Bridge.ID,
		Entities:  b.Snapshots(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.mqtt.Publish(DiscoveryTopic(), payload, 1, true)
}

// handleMQTTMessage routes incoming MQTT messages.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	if strings.HasPrefix(topic, TopicPrefix+"/request/"+protocolName+"/") {
		b.handleRequest(payload)
		return
	}
	b.logDebug("ignoring message on unexpected topic", "topic", topic)
}

// handleRequest answers read_state and read_all requests.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("invalid request payload", err)
		return
	}
	if req.RequestID == "" {
		b.logError("request without request_id", nil)
		return
	}

	resp := ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
	}

	switch req.Action {
	case ActionReadAll:
		resp.Success = true
		resp.Entities = b.Snapshots()
	case ActionReadState:
		if req.EntityID == "" {
			resp.Error = &ResponseError{Code: ErrCodeInvalidRequest, Message: "entity_id is required"}
			break
		}
		e, ok := b.dispatcher.Entity(req.EntityID)
		if !ok {
			resp.Error = &ResponseError{Code: ErrCodeNotFound, Message: fmt.Sprintf("entity %q not found", req.EntityID)}
			break
		}
		resp.Success = true
		resp.Entities = []EntitySnapshot{e.Snapshot()}
	default:
		resp.Error = &ResponseError{Code: ErrCodeUnknownAction, Message: fmt.Sprintf("unknown action %q", req.Action)}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}
	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), data, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

// Snapshots returns the current view of every entity in registration order.
func (b *Bridge) Snapshots() []EntitySnapshot {
	entities := b.dispatcher.Entities()
	out := make([]EntitySnapshot, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Snapshot())
	}
	return out
}

// Snapshot returns one entity's view.
func (b *Bridge) Snapshot(entityID string) (EntitySnapshot, bool) {
	e, ok := b.dispatcher.Entity(entityID)
	if !ok {
		return EntitySnapshot{}, false
	}
	return e.Snapshot(), true
}

// Health returns the current health message without publishing it.
func (b *Bridge) Health() HealthMessage {
	return b.health.Snapshot()
}

// SetLogger sets the logger for this bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
