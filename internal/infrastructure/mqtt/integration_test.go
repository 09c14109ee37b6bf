//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/config"
)

// These tests need a broker at 127.0.0.1:1883.
//
//	go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	return cfg
}

func mustConnect(t *testing.T, clientID string, opts ...Option) *Client {
	t.Helper()
	client, err := Connect(integrationConfig(clientID), opts...)
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", clientID, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_ConnectAndHealth(t *testing.T) {
	client := mustConnect(t, "graylogic-int-health")

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := integrationConfig("graylogic-int-refused")
	cfg.Broker.Port = 1
	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client := mustConnect(t, "graylogic-int-sub-track")

	topics := []string{
		"graylogic/int/enocean/state/+",
		"graylogic/int/enocean/event/+",
		"graylogic/int/enocean/request/#",
	}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	pub := mustConnect(t, "graylogic-int-pub")
	sub := mustConnect(t, "graylogic-int-sub")

	topic := Topics{}.BridgeState("enocean-int", "hall-window")
	want := `{"entity_id":"hall-window","state":"on"}`

	received := make(chan string, 1)
	var once sync.Once
	err := sub.Subscribe(Topics{}.AllBridgeStates("enocean-int"), 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(topic, []byte(want), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("received %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestIntegration_RetainedDelivery(t *testing.T) {
	pub := mustConnect(t, "graylogic-int-retain-pub")

	topic := Topics{}.BridgeHealth("enocean-int-retain")
	if err := pub.PublishRetained(topic, []byte(`{"status":"healthy"}`)); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}
	t.Cleanup(func() { pub.PublishRetained(topic, nil) })

	sub := mustConnect(t, "graylogic-int-retain-sub")
	received := make(chan []byte, 1)
	var once sync.Once
	if err := sub.SubscribeFunc(topic, 1, func(_ string, p []byte) {
		once.Do(func() { received <- p })
	}); err != nil {
		t.Fatalf("SubscribeFunc() error = %v", err)
	}

	select {
	case p := <-received:
		var body map[string]string
		if err := json.Unmarshal(p, &body); err != nil || body["status"] != "healthy" {
			t.Errorf("retained payload = %s (%v)", p, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retained message not delivered to late subscriber")
	}
}

func TestIntegration_SubscribeFuncRoundtrip(t *testing.T) {
	pub := mustConnect(t, "graylogic-int-func-pub")
	sub := mustConnect(t, "graylogic-int-func-sub",
		WithWill(Topics{}.BridgeHealth("enocean-int"), []byte(`{"status":"offline"}`)))

	received := make(chan string, 1)
	var once sync.Once
	err := sub.SubscribeFunc(Topics{}.AllBridgeRequests("enocean-int"), 1, func(topic string, _ []byte) {
		once.Do(func() { received <- topic })
	})
	if err != nil {
		t.Fatalf("SubscribeFunc() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	want := Topics{}.BridgeRequest("enocean-int", "req-1")
	if err := pub.Publish(want, []byte(`{"request_id":"req-1","action":"read_all"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("topic = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestIntegration_HandlerErrorLogged(t *testing.T) {
	client := mustConnect(t, "graylogic-int-handler-err")
	logger := &mockLogger{}
	client.SetLogger(logger)

	topic := "graylogic/int/enocean/handler-error"
	done := make(chan struct{})
	var once sync.Once
	if err := client.Subscribe(topic, 1, func(string, []byte) error {
		defer once.Do(func() { close(done) })
		return errors.New("rejected")
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := client.Publish(topic, []byte(`{}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not invoked")
	}
	time.Sleep(50 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) == 0 {
		t.Error("handler error was not logged")
	}
}
