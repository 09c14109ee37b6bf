package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix prefixes all environment overrides, e.g. GRAYLOGIC_MQTT_HOST.
const envPrefix = "GRAYLOGIC"

// Config is the root configuration structure for the EnOcean service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	EnOcean  EnOceanConfig  `yaml:"enocean"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// EnOceanConfig contains EnOcean bridge settings.
type EnOceanConfig struct {
	Enabled bool `yaml:"enabled"`

	// ConfigFile is the path to the bridge config (gateway, device lists).
	ConfigFile string `yaml:"config_file"`
}

// envOverrides lists the settings that can be overridden from the environment.
// Each key is GRAYLOGIC_ followed by the envconfig tag.
type envOverrides struct {
	DatabasePath      string `envconfig:"DATABASE_PATH"`
	MQTTHost          string `envconfig:"MQTT_HOST"`
	MQTTPort          int    `envconfig:"MQTT_PORT"`
	MQTTUsername      string `envconfig:"MQTT_USERNAME"`
	MQTTPassword      string `envconfig:"MQTT_PASSWORD"`
	APIHost           string `envconfig:"API_HOST"`
	APIPort           int    `envconfig:"API_PORT"`
	InfluxDBURL       string `envconfig:"INFLUXDB_URL"`
	InfluxDBToken     string `envconfig:"INFLUXDB_TOKEN"`
	LogLevel          string `envconfig:"LOG_LEVEL"`
	EnOceanConfigFile string `envconfig:"ENOCEAN_CONFIG_FILE"`
}

// Load builds the service configuration in three layers: built-in
// defaults, then the YAML file at path, then GRAYLOGIC_* environment
// variables (GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT, ...). The result
// is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig is what an empty config.yaml yields.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/enocean.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-enocean",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		EnOcean: EnOceanConfig{
			Enabled:    true,
			ConfigFile: "configs/enocean.yaml",
		},
	}
}

// applyEnvOverrides copies every set GRAYLOGIC_* variable over cfg.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return err
	}

	for dst, v := range map[*string]string{
		&cfg.Database.Path:      env.DatabasePath,
		&cfg.MQTT.Broker.Host:   env.MQTTHost,
		&cfg.MQTT.Auth.Username: env.MQTTUsername,
		&cfg.MQTT.Auth.Password: env.MQTTPassword,
		&cfg.API.Host:           env.APIHost,
		&cfg.InfluxDB.URL:       env.InfluxDBURL,
		&cfg.InfluxDB.Token:     env.InfluxDBToken,
		&cfg.Logging.Level:      env.LogLevel,
		&cfg.EnOcean.ConfigFile: env.EnOceanConfigFile,
	} {
		if v != "" {
			*dst = v
		}
	}
	for dst, v := range map[*int]int{
		&cfg.MQTT.Broker.Port: env.MQTTPort,
		&cfg.API.Port:         env.APIPort,
	} {
		if v != 0 {
			*dst = v
		}
	}
	return nil
}

// Validate reports every problem at once, joined with "; ".
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if c.EnOcean.Enabled && c.EnOcean.ConfigFile == "" {
		errs = append(errs, "enocean.config_file is required when enocean is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout is Read in seconds as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
