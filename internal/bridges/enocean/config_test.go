//nolint:goconst // Test files use repeated literals for clarity
package enocean

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enocean.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: "test-enocean-bridge"
  health_interval: 15
  repeat_window_ms: 200
  publish_discovery: false

gateway:
  id: "fam14"
  url: "tcp://192.168.1.50:5100"
  connect_timeout: 3

history:
  enabled: true

binary_sensor:
  - id: "FF-AA-80-00"
    name: "Kitchen window"
    eep: "F6-10-00"
  - id: "05-00-00-01"
    name: "Front door"
    eep: "D5-00-01"
    device_class: "garage_door"

event:
  - id: "FE-DB-DA-01"
    name: "Hall switch"
    eep: "F6-02-01"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Bridge.ID != "test-enocean-bridge" {
		t.Errorf("Bridge.ID = %q", cfg.Bridge.ID)
	}
	if cfg.GetHealthInterval() != 15*time.Second {
		t.Errorf("GetHealthInterval() = %v", cfg.GetHealthInterval())
	}
	if cfg.GetRepeatWindow() != 200*time.Millisecond {
		t.Errorf("GetRepeatWindow() = %v", cfg.GetRepeatWindow())
	}
	if cfg.Bridge.PublishDiscovery {
		t.Error("PublishDiscovery should be false")
	}
	if !cfg.Bridge.RecordSightings {
		t.Error("RecordSightings should keep its default")
	}
	if cfg.Gateway.URL != "tcp://192.168.1.50:5100" || cfg.Gateway.ID != "fam14" {
		t.Errorf("Gateway = %+v", cfg.Gateway)
	}
	if cfg.Gateway.BaudRate != DefaultBaudRate {
		t.Errorf("Gateway.BaudRate = %d, want default", cfg.Gateway.BaudRate)
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled should be true")
	}
	if len(cfg.BinarySensors) != 2 || cfg.BinarySensors[1].DeviceClass != "garage_door" {
		t.Errorf("BinarySensors = %+v", cfg.BinarySensors)
	}
	if len(cfg.Events) != 1 || cfg.Events[0].EEP != "F6-02-01" {
		t.Errorf("Events = %+v", cfg.Events)
	}

	opts := cfg.ToGatewayOptions()
	if opts.ConnectTimeout != 3*time.Second || opts.ReconnectInterval != 5*time.Second {
		t.Errorf("ToGatewayOptions() = %+v", opts)
	}
	if opts.InsecureSkipVerify {
		t.Error("InsecureSkipVerify should default to false")
	}
}

func TestToGatewayOptionsInsecureSkipVerify(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
bridge:
  id: "ws-bridge"
gateway:
  url: "wss://gateway.local/esp2"
  insecure_skip_verify: true
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	opts := cfg.ToGatewayOptions()
	if !opts.InsecureSkipVerify || opts.URL != "wss://gateway.local/esp2" {
		t.Errorf("ToGatewayOptions() = %+v", opts)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "bridge:\n  id: \"minimal\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Gateway.URL != DefaultGatewayURL {
		t.Errorf("Default Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Bridge.HealthInterval != 30 {
		t.Errorf("Default HealthInterval = %d", cfg.Bridge.HealthInterval)
	}
	if cfg.Bridge.RepeatWindowMS != 0 {
		t.Errorf("Default RepeatWindowMS = %d, want 0 (disabled)", cfg.Bridge.RepeatWindowMS)
	}
	if cfg.History.Enabled {
		t.Error("History should be disabled by default")
	}
	if len(cfg.BinarySensors) != 0 || len(cfg.Events) != 0 {
		t.Error("device lists should default to empty")
	}
}

func TestLoadConfigKeepsUnknownEEP(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
binary_sensor:
  - id: "01-00-00-01"
    eep: "A5-02-05"
  - id: "01-00-00-02"
    eep: "D5-00-01"
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.BinarySensors) != 2 {
		t.Errorf("BinarySensors = %d, want 2", len(cfg.BinarySensors))
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "bridge:\n  id: \"env-test-bridge\"\n")

	t.Setenv("ENOCEAN_BRIDGE_ID", "override-bridge-id")
	t.Setenv("ENOCEAN_BRIDGE_GATEWAY_ID", "fgw14")
	t.Setenv("ENOCEAN_BRIDGE_GATEWAY_URL", "serial:///dev/ttyACM0")
	t.Setenv("ENOCEAN_BRIDGE_GATEWAY_BAUD_RATE", "9600")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Bridge.ID != "override-bridge-id" {
		t.Errorf("Bridge.ID = %q", cfg.Bridge.ID)
	}
	if cfg.Gateway.ID != "fgw14" {
		t.Errorf("Gateway.ID = %q", cfg.Gateway.ID)
	}
	if cfg.Gateway.URL != "serial:///dev/ttyACM0" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Gateway.BaudRate != 9600 {
		t.Errorf("Gateway.BaudRate = %d", cfg.Gateway.BaudRate)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, "bridge: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
	t.Setenv("ENOCEAN_BRIDGE_GATEWAY_BAUD_RATE", "fast")
	if _, err := LoadConfig(writeConfig(t, "bridge:\n  id: x\n")); err == nil {
		t.Error("expected error for non-numeric baud rate")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError string
	}{
		{"missing bridge ID", func(c *Config) { c.Bridge.ID = "" }, "bridge.id is required"},
		{"health interval", func(c *Config) { c.Bridge.HealthInterval = 0 }, "health_interval must be at least 1"},
		{"negative repeat window", func(c *Config) { c.Bridge.RepeatWindowMS = -1 }, "repeat_window_ms must not be negative"},
		{"missing URL", func(c *Config) { c.Gateway.URL = "" }, "gateway.url is required"},
		{"bad scheme", func(c *Config) { c.Gateway.URL = "udp://host:1" }, "unsupported scheme"},
		{"baud rate", func(c *Config) { c.Gateway.BaudRate = 0 }, "baud_rate must be positive"},
		{"connect timeout", func(c *Config) { c.Gateway.ConnectTimeout = 0 }, "connect_timeout must be at least 1"},
		{"device without id", func(c *Config) {
			c.BinarySensors = []DeviceConfig{{EEP: "D5-00-01"}}
		}, "binary_sensor[0].id is required"},
		{"device without eep", func(c *Config) {
			c.Events = []DeviceConfig{{ID: "01-00-00-01"}}
		}, "event[0].eep is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("error = %q, want substring %q", err, tt.wantError)
			}
		})
	}

	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParseGatewayURL(t *testing.T) {
	tests := []struct {
		raw        string
		wantScheme string
		wantTarget string
		wantErr    bool
	}{
		{"serial:///dev/ttyUSB0", "serial", "/dev/ttyUSB0", false},
		{"serial://COM3", "serial", "COM3", false},
		{"tcp://192.168.1.50:5100", "tcp", "192.168.1.50:5100", false},
		{"ws://gateway.local/esp2", "ws", "ws://gateway.local/esp2", false},
		{"wss://gateway.local/esp2", "wss", "wss://gateway.local/esp2", false},
		{"serial://", "", "", true},
		{"tcp://", "", "", true},
		{"ws:///esp2", "", "", true},
		{"http://gateway.local", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			scheme, target, err := parseGatewayURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q %q", scheme, target)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if scheme != tt.wantScheme || target != tt.wantTarget {
				t.Errorf("got %q %q, want %q %q", scheme, target, tt.wantScheme, tt.wantTarget)
			}
		})
	}
}
