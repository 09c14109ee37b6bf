package enocean

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultGatewayURL is the default gateway connection: a FAM14/FGW14-USB
// on the first USB serial port.
const DefaultGatewayURL = "serial:///dev/ttyUSB0"

// DefaultBaudRate is the ESP2 line speed of Eltako gateways.
const DefaultBaudRate = 57600

// envPrefix prefixes environment overrides, e.g. ENOCEAN_BRIDGE_GATEWAY_URL.
const envPrefix = "ENOCEAN_BRIDGE"

// Config is the root configuration for the EnOcean bridge.
// Loaded from YAML with environment variable overrides.
type Config struct {
	Bridge        BridgeConfig   `yaml:"bridge"`
	Gateway       GatewayConfig  `yaml:"gateway"`
	History       HistoryConfig  `yaml:"history"`
	BinarySensors []DeviceConfig `yaml:"binary_sensor"`
	Events        []DeviceConfig `yaml:"event"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID uniquely identifies this bridge instance.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30 seconds.
	HealthInterval int `yaml:"health_interval"`

	// RepeatWindowMS drops repeated copies of a telegram (repeater count > 0)
	// seen within this many milliseconds. 0 disables suppression.
	RepeatWindowMS int `yaml:"repeat_window_ms"`

	// PublishDiscovery publishes the entity list on start.
	// Default: true.
	PublishDiscovery bool `yaml:"publish_discovery"`

	// RecordSightings stores every sender heard on the bus in SQLite.
	// Default: true.
	RecordSightings bool `yaml:"record_sightings"`
}

// GatewayConfig contains gateway connection settings.
type GatewayConfig struct {
	// ID names the gateway in device info (via_device).
	ID string `yaml:"id"`

	// URL is the gateway connection URL.
	// Supported formats:
	//   - "serial:///dev/ttyUSB0" (USB/RS485 gateway)
	//   - "tcp://192.168.1.50:5100" (serial-over-TCP)
	//   - "ws://gateway.local/esp2" (serial-over-WebSocket)
	URL string `yaml:"url"`

	// BaudRate applies to serial URLs only.
	// Default: 57600.
	BaudRate int `yaml:"baud_rate"`

	// ConnectTimeout is the maximum time to wait for connection (seconds).
	// Default: 10 seconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// ReconnectInterval is the initial delay between reconnection attempts (seconds).
	// Default: 5 seconds.
	ReconnectInterval int `yaml:"reconnect_interval"`

	// InsecureSkipVerify accepts self-signed certificates on wss:// URLs.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// HistoryConfig controls time-series writes.
type HistoryConfig struct {
	// Enabled writes state changes, events and telemetry to InfluxDB
	// when the core has an InfluxDB client.
	Enabled bool `yaml:"enabled"`
}

// DeviceConfig is one entry of the binary_sensor or event list.
type DeviceConfig struct {
	// ID is the device's sender address, e.g. "FF-AA-80-00".
	ID string `yaml:"id"`

	// Name is the display name.
	Name string `yaml:"name"`

	// EEP is the equipment profile string, e.g. "F6-02-01".
	EEP string `yaml:"eep"`

	// DeviceClass overrides the profile default (binary sensors only).
	DeviceClass string `yaml:"device_class"`
}

// envOverrides lists the settings that can be overridden from the environment.
type envOverrides struct {
	ID         string `envconfig:"ID"`
	GatewayID  string `envconfig:"GATEWAY_ID"`
	GatewayURL string `envconfig:"GATEWAY_URL"`
	BaudRate   int    `envconfig:"GATEWAY_BAUD_RATE"`
}

// LoadConfig reads configuration from a YAML file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ENOCEAN_BRIDGE_KEY
// For example: ENOCEAN_BRIDGE_GATEWAY_URL
//
// Device entries with an unknown EEP or malformed address are not
// rejected here; Setup skips them with a warning.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func LoadConfig(path string) (*Config, error) {
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:               "enocean-bridge-01",
			HealthInterval:   30,
			PublishDiscovery: true,
			RecordSightings:  true,
		},
		Gateway: GatewayConfig{
			ID:                "gateway",
			URL:               DefaultGatewayURL,
			BaudRate:          DefaultBaudRate,
			ConnectTimeout:    10,
			ReconnectInterval: 5,
		},
		BinarySensors: []DeviceConfig{},
		Events:        []DeviceConfig{},
	}
}

// applyEnvOverrides applies ENOCEAN_BRIDGE_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return err
	}

	if env.ID != "" {
		cfg.Bridge.ID = env.ID
	}
	if env.GatewayID != "" {
		cfg.Gateway.ID = env.GatewayID
	}
	if env.GatewayURL != "" {
		cfg.Gateway.URL = env.GatewayURL
	}
	if env.BaudRate != 0 {
		cfg.Gateway.BaudRate = env.BaudRate
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateGateway()...)
	errs = append(errs, validateDeviceList("binary_sensor", c.BinarySensors)...)
	errs = append(errs, validateDeviceList("event", c.Events)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBridge validates bridge settings.
func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	if c.Bridge.RepeatWindowMS < 0 {
		errs = append(errs, "bridge.repeat_window_ms must not be negative")
	}
	return errs
}

// validateGateway validates gateway connection settings.
func (c *Config) validateGateway() []string {
	var errs []string
	if c.Gateway.URL == "" {
		errs = append(errs, "gateway.url is required")
	} else if _, _, err := parseGatewayURL(c.Gateway.URL); err != nil {
		errs = append(errs, fmt.Sprintf("gateway.url %q is invalid: %v", c.Gateway.URL, err))
	}
	if c.Gateway.BaudRate < 1 {
		errs = append(errs, "gateway.baud_rate must be positive")
	}
	if c.Gateway.ConnectTimeout < 1 {
		errs = append(errs, "gateway.connect_timeout must be at least 1 second")
	}
	return errs
}

// validateDeviceList checks that each entry names an address and a profile.
// Whether the profile is supported is decided at setup time.
func validateDeviceList(section string, devices []DeviceConfig) []string {
	var errs []string
	for i, dev := range devices {
		if strings.TrimSpace(dev.ID) == "" {
			errs = append(errs, fmt.Sprintf("%s[%d].id is required", section, i))
		}
		if strings.TrimSpace(dev.EEP) == "" {
			errs = append(errs, fmt.Sprintf("%s[%d].eep is required", section, i))
		}
	}
	return errs
}

// ToGatewayOptions converts settings to options for the gateway client.
func (c *Config) ToGatewayOptions() GatewayOptions {
	return GatewayOptions{
		URL:                c.Gateway.URL,
		BaudRate:           c.Gateway.BaudRate,
		ConnectTimeout:     time.Duration(c.Gateway.ConnectTimeout) * time.Second,
		ReconnectInterval:  time.Duration(c.Gateway.ReconnectInterval) * time.Second,
		InsecureSkipVerify: c.Gateway.InsecureSkipVerify,
	}
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetRepeatWindow returns the repeated-telegram window as a Duration.
func (c *Config) GetRepeatWindow() time.Duration {
	return time.Duration(c.Bridge.RepeatWindowMS) * time.Millisecond
}

// parseGatewayURL splits a gateway URL into scheme and target.
// For serial URLs the target is the device path; for tcp the host:port;
// for ws/wss the full URL.
func parseGatewayURL(raw string) (scheme, target string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	switch u.Scheme {
	case "serial":
		path := u.Path
		if u.Host != "" {
			// serial://COM3 on Windows
			path = u.Host + u.Path
		}
		if path == "" {
			return "", "", fmt.Errorf("serial URL has no device path")
		}
		return "serial", path, nil
	case "tcp":
		if u.Host == "" {
			return "", "", fmt.Errorf("tcp URL has no host")
		}
		return "tcp", u.Host, nil
	case "ws", "wss":
		if u.Host == "" {
			return "", "", fmt.Errorf("websocket URL has no host")
		}
		return u.Scheme, raw, nil
	default:
		return "", "", fmt.Errorf("unsupported scheme %q (use serial, tcp, ws, or wss)", u.Scheme)
	}
}
