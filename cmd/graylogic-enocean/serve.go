package main

import (
	"context"
	"encoding/json"
	"fmt"

	_ "github.com/nerrad567/gray-logic-enocean/migrations"

	"github.com/nerrad567/gray-logic-enocean/internal/api"
	"github.com/nerrad567/gray-logic-enocean/internal/bridges/enocean"
	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/mqtt"
)

// run is the service logic, separated from the cobra command for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to config.yaml
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic EnOcean",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// Load the bridge config before MQTT so the LWT can name the bridge.
	var bridgeCfg *enocean.Config
	if cfg.EnOcean.Enabled {
		bridgeCfg, err = enocean.LoadConfig(cfg.EnOcean.ConfigFile)
		if err != nil {
			return fmt.Errorf("loading EnOcean bridge config: %w", err)
		}
		log.Info("EnOcean bridge config loaded",
			"path", cfg.EnOcean.ConfigFile,
			"binary_sensors", len(bridgeCfg.BinarySensors),
			"events", len(bridgeCfg.Events),
		)
	}

	db, err := database.Open(database.FromConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	var mqttOpts []mqtt.Option
	if bridgeCfg != nil {
		will, willErr := json.Marshal(enocean.NewLWTMessage(bridgeCfg.Bridge.ID))
		if willErr != nil {
			return fmt.Errorf("building LWT payload: %w", willErr)
		}
		mqttOpts = append(mqttOpts, mqtt.WithWill(enocean.HealthTopic(), will))
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT, mqttOpts...)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// InfluxDB is optional
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if bridgeCfg == nil {
		log.Info("EnOcean bridge disabled, waiting for shutdown signal")
		<-ctx.Done()
		return nil
	}

	svc, err := startBridge(ctx, bridgeCfg, db, mqttClient, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting EnOcean bridge: %w", err)
	}
	defer svc.stop(log)
	checks["gateway"] = svc.gateway

	// Retained states may have been lost with a broker restart.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected, re-publishing states on next update")
		svc.bridge.ClearStateCache()
	})

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Bridge:  svc.bridge,
			MQTT:    mqttClient,
			Checks:  checks,
			Version: version,
		}
		if svc.recorder != nil {
			deps.Sightings = svc.recorder
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API, bridge, gateway and recorder, InfluxDB, MQTT, database.
	return nil
}

// healthCheck runs every infrastructure check and returns the first failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// bridgeService groups the running bridge and the components it owns.
type bridgeService struct {
	gateway  *enocean.GatewayClient
	recorder *enocean.SightingRecorder
	bridge   *enocean.Bridge
}

// startBridge connects the gateway and starts the sighting recorder and bridge.
//
// Parameters:
//   - ctx: Context for connection/cancellation
//   - cfg: Loaded bridge configuration
//   - db: Database holding the sightings table
//   - mqttClient: MQTT client for publishing/subscribing
//   - influxClient: History writer (may be nil if disabled)
//   - log: Logger instance
//
// Returns:
//   - *bridgeService: Running bridge and its dependencies
//   - error: If the gateway or bridge fails to start
func startBridge(ctx context.Context, cfg *enocean.Config, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) (*bridgeService, error) {
	gateway, err := enocean.Connect(ctx, cfg.ToGatewayOptions())
	if err != nil {
		return nil, fmt.Errorf("connecting to gateway: %w", err)
	}
	gateway.SetLogger(log)
	log.Info("connected to EnOcean gateway", "url", gateway.Address())

	svc := &bridgeService{gateway: gateway}

	opts := enocean.BridgeOptions{
		Config:         cfg,
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Gateway:        gateway,
		GatewayAddress: gateway.Address(),
		Logger:         log,
		Version:        version,
	}

	if cfg.Bridge.RecordSightings {
		svc.recorder = enocean.NewSightingRecorder(db.DB)
		svc.recorder.SetLogger(log)
		if startErr := svc.recorder.Start(); startErr != nil {
			_ = gateway.Close()
			return nil, fmt.Errorf("starting sighting recorder: %w", startErr)
		}
		opts.Recorder = svc.recorder
	}
	if influxClient != nil {
		opts.History = influxClient
	}

	bridge, err := enocean.NewBridge(opts)
	if err != nil {
		svc.closeInfrastructure()
		return nil, fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		svc.closeInfrastructure()
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	svc.bridge = bridge
	log.Info("EnOcean bridge started", "entities", len(bridge.Snapshots()))

	return svc, nil
}

// stop shuts down the bridge before the gateway and recorder it uses.
func (s *bridgeService) stop(log *logging.Logger) {
	log.Info("stopping EnOcean bridge")
	if s.bridge != nil {
		s.bridge.Stop()
	}
	s.closeInfrastructure()
}

func (s *bridgeService) closeInfrastructure() {
	if s.recorder != nil {
		s.recorder.Stop()
	}
	if s.gateway != nil {
		_ = s.gateway.Close()
	}
}

// bridgeMQTT is the part of the infrastructure MQTT client the bridge uses.
type bridgeMQTT interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	SubscribeFunc(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The infrastructure Subscribe handler returns an
// error; bridge handlers do not.
type mqttBridgeAdapter struct {
	client bridgeMQTT
}

// Publish implements enocean.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements enocean.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.SubscribeFunc(topic, qos, handler)
}

// IsConnected implements enocean.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
