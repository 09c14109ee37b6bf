package enocean

import (
	"fmt"
	"time"
)

// MQTT message types exchanged between the EnOcean bridge and Gray Logic Core.

// protocolName is the protocol identifier used in topics and messages.
const protocolName = "enocean"

// StateMessage is sent when a binary sensor changes state.
// Topic: graylogic/state/enocean/{entity_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// EntityID is the entity identifier (e.g., "binary_sensor.eltako_0000001_window").
	EntityID string `json:"entity_id"`

	// UniqueID is the stable unique identifier.
	UniqueID string `json:"unique_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State is "on" or "off".
	State string `json:"state"`

	// On is the boolean form of State.
	On bool `json:"on"`

	// Protocol is the protocol identifier ("enocean").
	Protocol string `json:"protocol"`

	// Address is the sender ID (e.g., "FF-AA-80-00").
	Address string `json:"address"`

	// DeviceClass is the binary sensor device class.
	DeviceClass string `json:"device_class,omitempty"`
}

// EventMessage is sent when an event entity fires.
// Topic: graylogic/event/enocean/{entity_id}
// QoS: 1, Retained: No
type EventMessage struct {
	// EventID uniquely identifies this event occurrence.
	EventID string `json:"event_id"`

	// EntityID is the event entity identifier.
	EntityID string `json:"entity_id"`

	// Timestamp is when the telegram was received (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// EventType is the event kind, e.g. "button_pressed".
	EventType string `json:"event_type"`

	// Channel is the rocker channel (A0, A1, B0, B1).
	Channel string `json:"channel,omitempty"`

	// Protocol is the protocol identifier ("enocean").
	Protocol string `json:"protocol"`

	// Address is the sender ID.
	Address string `json:"address"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports operational status.
// Topic: graylogic/health/enocean
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	Connection     *ConnectionStatus `json:"connection,omitempty"`
	Statistics     *BridgeStatistics `json:"statistics,omitempty"`
	DevicesManaged int               `json:"devices_managed"`
	EntitiesActive int               `json:"entities_active"`
	Reason         string            `json:"reason,omitempty"`
}

// ConnectionStatus describes the gateway connection state.
type ConnectionStatus struct {
	// Status is "connected", "disconnected", or "reconnecting".
	Status string `json:"status"`

	// Address is the gateway URL.
	Address string `json:"address"`

	// LastActivity is when a frame was last received or sent.
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	FramesReceived    uint64 `json:"frames_received"`
	FramesSent        uint64 `json:"frames_sent"`
	BadFrames         uint64 `json:"bad_frames"`
	TelegramsDropped  uint64 `json:"telegrams_dropped"`
	RepeatsSuppressed uint64 `json:"repeats_suppressed"`
	Errors            uint64 `json:"errors"`
}

// RequestMessage is sent from Core to query the bridge.
// Topic: graylogic/request/enocean/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is "read_state" (needs EntityID) or "read_all".
	Action   string `json:"action"`
	EntityID string `json:"entity_id,omitempty"`
}

// Request actions.
const (
	ActionReadState = "read_state"
	ActionReadAll   = "read_all"
)

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/enocean/{request_id}
type ResponseMessage struct {
	RequestID string           `json:"request_id"`
	Timestamp time.Time        `json:"timestamp"`
	Success   bool             `json:"success"`
	Entities  []EntitySnapshot `json:"entities,omitempty"`
	Error     *ResponseError   `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for failed requests.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeUnknownAction  = "UNKNOWN_ACTION"
)

// DiscoveryMessage announces the configured entities.
// Topic: graylogic/discovery/enocean
// QoS: 1, Retained: Yes
type DiscoveryMessage struct {
	Timestamp time.Time        `json:"timestamp"`
	Bridge    string           `json:"bridge"`
	Entities  []EntitySnapshot `json:"entities"`
}

// NewStateMessage creates a state message for a binary sensor.
func NewStateMessage(snap EntitySnapshot, on bool) StateMessage {
	state := "off"
	if on {
		state = "on"
	}
	return StateMessage{
		EntityID:    snap.EntityID,
		UniqueID:    snap.UniqueID,
		Timestamp:   time.Now().UTC(),
		State:       state,
		On:          on,
		Protocol:    protocolName,
		Address:     snap.Address.String(),
		DeviceClass: snap.DeviceClass,
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats GatewayStats, devices, entities int, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: devices,
		EntitiesActive: entities,
	}

	conn := &ConnectionStatus{Status: "disconnected"}
	switch {
	case stats.Connected:
		conn.Status = "connected"
	case stats.Reconnecting:
		conn.Status = "reconnecting"
	}
	if !stats.LastActivity.IsZero() {
		last := stats.LastActivity.UTC()
		conn.LastActivity = &last
	}
	msg.Connection = conn

	msg.Statistics = &BridgeStatistics{
		FramesReceived:   stats.FramesRx,
		FramesSent:       stats.FramesTx,
		BadFrames:        stats.BadFrames,
		TelegramsDropped: stats.TelegramsDropped,
		Errors:           stats.ErrorsTotal,
	}

	return msg
}

// NewLWTMessage creates a Last Will and Testament message for MQTT.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers

const (
	// TopicPrefix is the base topic for all Gray Logic messages.
	TopicPrefix = "graylogic"
)

// StateTopic returns the MQTT topic for an entity's state.
// Example: graylogic/state/enocean/binary_sensor.eltako_ffaa8000_window
func StateTopic(entityID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocolName, entityID)
}

// EventTopic returns the MQTT topic for an entity's events.
// Example: graylogic/event/enocean/event.eltako_fedbda01_button_A0
func EventTopic(entityID string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, protocolName, entityID)
}

// HealthTopic returns the MQTT topic for health status.
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocolName)
}

// DiscoveryTopic returns the MQTT topic for entity discovery.
func DiscoveryTopic() string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, protocolName)
}

// RequestSubscribeTopic returns the subscription pattern for all requests.
// Example: graylogic/request/enocean/#
func RequestSubscribeTopic() string {
	return fmt.Sprintf("%s/request/%s/#", TopicPrefix, protocolName)
}

// ResponseTopic returns the MQTT topic for a request's response.
func ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, protocolName, requestID)
}
