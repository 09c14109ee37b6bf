package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/config"
)

// Client is a paho connection shared by the bridge and the API relay.
// It is safe for concurrent use.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// Replayed by handleConnect after every reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected atomic.Bool

	hooksMu      sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is the subset of *logging.Logger (or *slog.Logger) the client uses.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one message. topic is the concrete topic, not the
// subscription pattern. A returned error is logged only.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker and blocks until the first connection succeeds or
// defaultConnectTimeout passes. The LWT is registered before dialing; pass
// WithWill to replace the default offline status. Once connected, the client
// reconnects on its own and restores tracked subscriptions.
func Connect(cfg config.MQTTConfig, options ...Option) (*Client, error) {
	var co connectOptions
	for _, o := range options {
		o(&co)
	}

	c := &Client{
		cfg:           cfg,
		options:       buildClientOptions(cfg),
		subscriptions: make(map[string]subscription),
	}
	configureLWT(c.options, cfg.Broker.ClientID, co.will)

	c.options.
		SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) }).
		SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
			c.warn("MQTT reconnecting", "client_id", cfg.Broker.ClientID)
		})

	c.client = pahomqtt.NewClient(c.options)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// handleConnect may still be running; callers publish right away.
	c.connected.Store(true)
	return c, nil
}

// handleConnect runs on the initial connection and after every reconnect.
// Subscriptions are replayed before "online" goes out so a request sent in
// reaction to it is not missed.
func (c *Client) handleConnect() {
	c.connected.Store(true)

	c.subMu.RLock()
	for _, sub := range c.subscriptions {
		topic := sub.topic
		token := c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
		go func() {
			if err := waitToken(token, ErrSubscribeFailed); err != nil {
				c.warn("MQTT re-subscribe failed", "topic", topic, "error", err)
			}
		}()
	}
	c.subMu.RUnlock()

	c.publishStatus("online", "")

	c.hooksMu.RLock()
	fn := c.onConnect
	c.hooksMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)

	c.hooksMu.RLock()
	fn := c.onDisconnect
	c.hooksMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// publishStatus sends a retained service status for this client ID.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	id := c.cfg.Broker.ClientID
	return c.client.Publish(Topics{}.ServiceStatus(id), byte(c.cfg.QoS), true, statusPayload(id, status, reason))
}

// Close publishes a graceful offline status, which subscribers can tell
// apart from the LWT, then disconnects. It always returns nil.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus("offline", "graceful_shutdown").WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client.IsConnected()
}

// SetOnConnect registers fn to run after the initial connect and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.hooksMu.Lock()
	c.onConnect = fn
	c.hooksMu.Unlock()
}

// SetOnDisconnect registers fn to run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hooksMu.Lock()
	c.onDisconnect = fn
	c.hooksMu.Unlock()
}

// SetLogger enables logging of handler errors, recovered panics and
// reconnect attempts. Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.hooksMu.Lock()
	c.logger = logger
	c.hooksMu.Unlock()
}

func (c *Client) currentLogger() Logger {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.logger
}

func (c *Client) warn(msg string, args ...any) {
	if l := c.currentLogger(); l != nil {
		l.Warn(msg, args...)
	}
}

// wrapHandler adapts a MessageHandler to paho, recovering panics so one bad
// payload cannot take down paho's router goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		topic := msg.Topic()
		defer func() {
			if r := recover(); r != nil {
				if l := c.currentLogger(); l != nil {
					l.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
				}
			}
		}()

		if err := handler(topic, msg.Payload()); err != nil {
			c.warn("MQTT handler returned error", "topic", topic, "error", err)
		}
	}
}
