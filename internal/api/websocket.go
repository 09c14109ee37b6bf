package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeSnapshot    = "snapshot"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Broadcast channels clients can subscribe to.
const (
	// ChannelEntityState carries StateMessage payloads from graylogic/state/enocean/+.
	ChannelEntityState = "entity.state"

	// ChannelEntityEvent carries EventMessage payloads from graylogic/event/enocean/+.
	ChannelEntityEvent = "entity.event"
)

const (
	wsSendBufferSize = 256
	wsMaxMessageSize = 4096
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 10 * time.Second
	wsReadWindow     = wsPingInterval + wsPongWait
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// inboundMessage defers payload decoding until the type is known.
type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans bridge updates out to WebSocket clients by channel.
type Hub struct {
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	// snapshot, when set, is sent to a client as it joins ChannelEntityState.
	snapshot func() any
}

// WSClient is one WebSocket connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}
	closed        bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[*WSClient]struct{})}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Broadcast sends payload as an event to every client subscribed to channel.
// Slow clients with a full buffer miss the message.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encode(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.isSubscribed(channel) {
			c.trySend(data)
		}
	}
}

// BroadcastRaw relays an MQTT JSON payload unchanged. Invalid JSON is dropped.
func (h *Hub) BroadcastRaw(channel string, raw []byte) {
	if !json.Valid(raw) {
		h.logger.Warn("dropping non-JSON payload from WebSocket relay", "channel", channel)
		return
	}
	h.Broadcast(channel, json.RawMessage(raw))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// encode stamps the message with the current UTC time and marshals it.
func encode(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}

// handleWebSocket upgrades the connection and starts the client pumps.
// Nothing is pushed until the client subscribes, either with a subscribe
// message or up front with ?channels=entity.state,entity.event.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	initial := parseChannels(r.URL.Query().Get("channels"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(c)
	c.subscribe(initial)

	go c.writePump()
	go c.readPump()
}

func parseChannels(raw string) []string {
	var out []string
	for _, ch := range strings.Split(raw, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

func (c *WSClient) extendReadDeadline() error {
	return c.conn.SetReadDeadline(time.Now().Add(wsReadWindow))
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetPongHandler(func(string) error { return c.extendReadDeadline() })

	for {
		//nolint:errcheck // a failed deadline surfaces as a read error
		c.extendReadDeadline()
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &sub); err != nil {
				c.reply(msg.ID, WSTypeError, map[string]string{"message": "invalid " + msg.Type + " payload"})
				return
			}
		}
		if msg.Type == WSTypeUnsubscribe {
			c.unsubscribe(sub.Channels)
			c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
			return
		}
		c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels})
		c.subscribe(sub.Channels)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// subscribe adds channels. On first joining ChannelEntityState the current
// entity snapshot is queued ahead of any live state.
func (c *WSClient) subscribe(channels []string) {
	joinedState := false
	c.mu.Lock()
	for _, ch := range channels {
		if _, ok := c.subscriptions[ch]; !ok && ch == ChannelEntityState {
			joinedState = true
		}
		c.subscriptions[ch] = struct{}{}
	}
	c.mu.Unlock()

	if joinedState && c.hub.snapshot != nil {
		if data, err := encode(WSMessage{
			Type:      WSTypeSnapshot,
			EventType: ChannelEntityState,
			Payload:   c.hub.snapshot(),
		}); err == nil {
			c.trySend(data)
		}
	}
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) reply(id, msgType string, payload any) {
	if data, err := encode(WSMessage{Type: msgType, ID: id, Payload: payload}); err == nil {
		c.trySend(data)
	}
}

// trySend queues data without blocking. It drops data when the buffer is
// full or the client has been shut down.
func (c *WSClient) trySend(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// shutdown closes the send channel once, which makes writePump exit.
func (c *WSClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
