package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-enocean/internal/bridges/enocean"
	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EntitySource exposes the bridge's entity table and health.
// It is satisfied by *enocean.Bridge.
type EntitySource interface {
	Snapshots() []enocean.EntitySnapshot
	Snapshot(entityID string) (enocean.EntitySnapshot, bool)
	Health() enocean.HealthMessage
}

// SightingSource lists senders heard on the bus.
// It is satisfied by *enocean.SightingRecorder.
type SightingSource interface {
	Sightings(ctx context.Context, unknownOnly bool, limit int) ([]enocean.Sighting, error)
}

// StateSubscriber delivers MQTT messages for the WebSocket relay.
// It is satisfied by *mqtt.Client.
type StateSubscriber interface {
	SubscribeFunc(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// HealthChecker is implemented by infrastructure components (database, MQTT, InfluxDB).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Bridge    EntitySource
	Sightings SightingSource           // nil when sighting recording is disabled
	MQTT      StateSubscriber          // nil disables the WebSocket relay
	Checks    map[string]HealthChecker // reported by /health
	Version   string
}

// Server is the HTTP API server for the EnOcean service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	bridge    EntitySource
	sightings SightingSource
	mqtt      StateSubscriber
	checks    map[string]HealthChecker
	version   string
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	hub := NewHub(deps.Logger)
	hub.snapshot = func() any { return deps.Bridge.Snapshots() }

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		sightings: deps.Sightings,
		mqtt:      deps.MQTT,
		checks:    deps.Checks,
		version:   deps.Version,
		hub:       hub,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes to EnOcean state and event topics
// for the live relay, and launches the HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if err := s.subscribeBridgeUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to bridge updates for WebSocket", "error", err)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// subscribeBridgeUpdates relays retained state and button events to WebSocket clients.
func (s *Server) subscribeBridgeUpdates() error {
	if s.mqtt == nil {
		return nil
	}

	topics := mqtt.Topics{}
	relays := []struct {
		topic   string
		channel string
	}{
		{topics.AllBridgeStates("enocean"), ChannelEntityState},
		{topics.AllBridgeEvents("enocean"), ChannelEntityEvent},
	}
	for _, r := range relays {
		channel := r.channel
		s.logger.Info("subscribing for WebSocket relay", "topic", r.topic, "channel", channel)
		if err := s.mqtt.SubscribeFunc(r.topic, 1, func(_ string, payload []byte) {
			s.hub.BroadcastRaw(channel, payload)
		}); err != nil {
			return fmt.Errorf("subscribing to %s: %w", r.topic, err)
		}
	}
	return nil
}
