package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-enocean/internal/api"
)

// writeConfig writes a config file to a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: test-site

database:
  path: ""

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout

enocean:
  enabled: false
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, configPath); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_MissingBridgeConfig verifies run fails before touching MQTT when
// the bridge config file is missing.
func TestRun_MissingBridgeConfig(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	configPath := writeConfig(t, `
database:
  path: "`+dbPath+`"

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-client"

logging:
  level: error
  format: text
  output: stdout

enocean:
  enabled: true
  config_file: "/nonexistent/enocean.yaml"
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil || !strings.Contains(err.Error(), "loading EnOcean bridge config") {
		t.Fatalf("run() error = %v, want bridge config failure", err)
	}
}

// TestRun_SuccessfulStartupAndShutdown tests full startup with running services.
// Requires MQTT broker at 127.0.0.1:1883.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("requires MQTT broker")
	}
	dbPath := filepath.Join(t.TempDir(), "test.db")
	configPath := writeConfig(t, `
database:
  path: "`+dbPath+`"

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-successful-startup"
  reconnect:
    initial_delay: 1
    max_delay: 5

logging:
  level: info
  format: text
  output: stdout

enocean:
  enabled: false
`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx, configPath); err != nil {
		t.Logf("run() returned error: %v (may be due to missing MQTT broker)", err)
	}
}

// TestGetConfigPath verifies flag, environment and default precedence.
func TestGetConfigPath(t *testing.T) {
	t.Setenv(configEnvVar, "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configEnvVar, "/custom/path/config.yaml")
	if got := getConfigPath(""); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}

	if got := getConfigPath("/flag/config.yaml"); got != "/flag/config.yaml" {
		t.Errorf("getConfigPath() = %q, want flag value", got)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(out.String(), "graylogic-enocean "+version) {
		t.Errorf("output = %q, want version line", out.String())
	}
}

func TestDecodeCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"decode", "--eep", "F6-10-00", "A5", "5A", "0B", "05", "F0", "00", "00", "00", "00", "2D", "CF", "45", "30", "71"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "StateUpdate(false)") {
		t.Errorf("output = %q, want StateUpdate(false)", out.String())
	}
}

func TestDecodeCommandRequiresEEP(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"decode", "A55A0B05F0000000002DCF453071"})

	if err := root.Execute(); err == nil {
		t.Fatal("Execute() should fail without --eep")
	}
}

type fakeMQTT struct {
	published []string
	handler   func(topic string, payload []byte)
	connected bool
	subErr    error
}

func (f *fakeMQTT) Publish(topic string, _ []byte, _ byte, _ bool) error {
	f.published = append(f.published, topic)
	return nil
}

func (f *fakeMQTT) SubscribeFunc(_ string, _ byte, handler func(topic string, payload []byte)) error {
	if f.subErr != nil {
		return f.subErr
	}
	f.handler = handler
	return nil
}

func (f *fakeMQTT) IsConnected() bool { return f.connected }

func TestMQTTBridgeAdapter(t *testing.T) {
	fake := &fakeMQTT{connected: true}
	a := &mqttBridgeAdapter{client: fake}

	if err := a.Publish("graylogic/state/enocean/x", nil, 1, true); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if len(fake.published) != 1 {
		t.Errorf("published = %v", fake.published)
	}
	if !a.IsConnected() {
		t.Error("IsConnected() = false")
	}

	var got string
	if err := a.Subscribe("graylogic/request/enocean/#", 1, func(topic string, _ []byte) { got = topic }); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	fake.handler("graylogic/request/enocean/r1", []byte("{}"))
	if got != "graylogic/request/enocean/r1" {
		t.Errorf("handler topic = %q", got)
	}

	fake.subErr = errors.New("broker gone")
	if err := a.Subscribe("t", 1, func(string, []byte) {}); err == nil {
		t.Error("Subscribe() should propagate error")
	}
}

type checkFunc func(context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	bad := checkFunc(func(context.Context) error { return errors.New("down") })

	if err := healthCheck(context.Background(), map[string]api.HealthChecker{"database": ok}); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}
	err := healthCheck(context.Background(), map[string]api.HealthChecker{"database": ok, "mqtt": bad})
	if err == nil || !strings.Contains(err.Error(), "mqtt: down") {
		t.Errorf("healthCheck() error = %v, want mqtt failure", err)
	}
}
