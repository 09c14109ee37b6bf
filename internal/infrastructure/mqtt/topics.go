package mqtt

import "fmt"

// Topic prefixes for the Gray Logic bus.
//
// Bridge topics use the flat scheme: graylogic/{category}/{protocol}/{address_or_id}
// This matches the EnOcean bridge's messages.go and all runtime subscribers.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "graylogic"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("enocean", "hall-pir-occupancy")
//	// Returns: "graylogic/state/enocean/hall-pir-occupancy"
type Topics struct{}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeState returns the topic for entity state updates from a bridge.
//
// Example: graylogic/state/enocean/hall-pir-occupancy
func (Topics) BridgeState(protocol, entityID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, entityID)
}

// BridgeEvent returns the topic for stateless events (button presses).
//
// Example: graylogic/event/enocean/lounge-switch-a0
func (Topics) BridgeEvent(protocol, entityID string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefixBridge, protocol, entityID)
}

// BridgeRequest returns the topic for requests to a bridge.
//
// Example: graylogic/request/enocean/req-abc123
func (Topics) BridgeRequest(protocol, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefixBridge, protocol, requestID)
}

// BridgeResponse returns the topic for request responses from a bridge.
//
// Example: graylogic/response/enocean/req-abc123
func (Topics) BridgeResponse(protocol, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefixBridge, protocol, requestID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/enocean
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// BridgeDiscovery returns the topic for entity discovery from a bridge.
//
// Example: graylogic/discovery/enocean
func (Topics) BridgeDiscovery(protocol string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefixBridge, protocol)
}

// =============================================================================
// System Topics
// =============================================================================

// ServiceStatus returns the online/offline status topic for one MQTT client.
//
// Example: graylogic/system/status/graylogic-enocean
func (Topics) ServiceStatus(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefixSystem, clientID)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllBridgeStates returns a pattern matching every entity state of a protocol.
//
// Pattern: graylogic/state/enocean/+
func (Topics) AllBridgeStates(protocol string) string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefixBridge, protocol)
}

// AllBridgeEvents returns a pattern matching every event of a protocol.
//
// Pattern: graylogic/event/enocean/+
func (Topics) AllBridgeEvents(protocol string) string {
	return fmt.Sprintf("%s/event/%s/+", TopicPrefixBridge, protocol)
}

// AllBridgeRequests returns a pattern matching all requests to one bridge.
//
// Pattern: graylogic/request/enocean/#
func (Topics) AllBridgeRequests(protocol string) string {
	return fmt.Sprintf("%s/request/%s/#", TopicPrefixBridge, protocol)
}

// AllBridgeHealth returns a pattern matching all bridge health updates.
//
// Pattern: graylogic/health/+
func (Topics) AllBridgeHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefixBridge)
}

// AllTopics returns a pattern matching all Gray Logic topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: graylogic/#
func (Topics) AllTopics() string {
	return "graylogic/#"
}
