package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions maps MQTTConfig onto paho options. Sessions are clean;
// the client re-subscribes itself after every reconnect.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// Auto-reconnect with exponential backoff
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	// Connection timeout
	opts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	opts.SetKeepAlive(defaultKeepAlive)

	// TLS configuration if enabled
	if cfg.Broker.TLS {
		tlsConfig := &tls.Config{
			MinVersion: tlsMinVersion,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}

// Will describes the Last Will and Testament registered with the broker.
type Will struct {
	Topic   string
	Payload []byte
}

// Option customises a Client at connect time.
type Option func(*connectOptions)

type connectOptions struct {
	will *Will
}

// WithWill replaces the default status LWT with a caller-supplied message.
// Bridges use this to point the broker at their own health topic.
func WithWill(topic string, payload []byte) Option {
	return func(o *connectOptions) {
		o.will = &Will{Topic: topic, Payload: payload}
	}
}

// configureLWT registers the Last Will and Testament the broker publishes
// if the client vanishes without a clean disconnect. The default is an
// offline status on graylogic/system/status/{client_id}; WithWill replaces
// it. Either way the will is QoS 1 and retained.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string, will *Will) {
	if will != nil {
		opts.SetBinaryWill(will.Topic, will.Payload, 1, true)
		return
	}
	opts.SetBinaryWill(Topics{}.ServiceStatus(clientID), statusPayload(clientID, "offline", "unexpected_disconnect"), 1, true)
}

// serviceStatus is the payload on graylogic/system/status/{client_id}.
type serviceStatus struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// statusPayload encodes a service status message. reason may be empty.
func statusPayload(clientID, status, reason string) []byte {
	b, err := json.Marshal(serviceStatus{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return []byte(`{"status":"` + status + `"}`)
	}
	return b
}
