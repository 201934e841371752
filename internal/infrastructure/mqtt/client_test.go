package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmarsden/edgeflow-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "edgeflow-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// disconnectedClient returns a client that was never connected.
// Validation paths run before any broker traffic, so these tests do not
// need a running broker.
func disconnectedClient() *Client {
	return &Client{
		cfg:  testConfig(),
		subs: make(map[string]subscription),
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := disconnectedClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

func TestPublishValidation(t *testing.T) {
	client := disconnectedClient()

	if err := client.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Publish("t", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := disconnectedClient()

	if err := client.Subscribe("", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	client := disconnectedClient()

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
	if client.HasSubscription("edgeflow/ack/+/+") {
		t.Error("HasSubscription() = true for untracked topic")
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "bridge command",
			got:      topics.BridgeCommand("led", "led_touch"),
			expected: "edgeflow/command/led/led_touch",
		},
		{
			name:     "bridge state",
			got:      topics.BridgeState("gpio", "17"),
			expected: "edgeflow/state/gpio/17",
		},
		{
			name:     "bridge ack",
			got:      topics.BridgeAck("led", "led_board"),
			expected: "edgeflow/ack/led/led_board",
		},
		{
			name:     "bridge health",
			got:      topics.BridgeHealth("led"),
			expected: "edgeflow/health/led",
		},
		{
			name:     "core event",
			got:      topics.CoreEvent("action_executed"),
			expected: "edgeflow/core/event/action_executed",
		},
		{
			name:     "core action result",
			got:      topics.CoreActionResult("act-123"),
			expected: "edgeflow/core/action/act-123/result",
		},
		{
			name:     "system status",
			got:      topics.SystemStatus(),
			expected: "edgeflow/system/status",
		},
		{
			name:     "all bridge states",
			got:      topics.AllBridgeStates(),
			expected: "edgeflow/state/+/+",
		},
		{
			name:     "all bridge acks",
			got:      topics.AllBridgeAcks(),
			expected: "edgeflow/ack/+/+",
		},
		{
			name:     "all bridge health",
			got:      topics.AllBridgeHealth(),
			expected: "edgeflow/health/+",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("edgeflow-core")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload missing status: %s", online)
	}
	if !strings.Contains(online, `"client_id":"edgeflow-core"`) {
		t.Errorf("online payload missing client id: %s", online)
	}

	offline := buildOfflinePayload("edgeflow-core")
	if !strings.Contains(offline, `"status":"offline"`) {
		t.Errorf("offline payload missing status: %s", offline)
	}
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "core"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("got %d brokers, want 1", len(opts.Servers))
	}
	if opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", opts.Servers[0].String())
	}
	if opts.ClientID != "edgeflow-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "core" {
		t.Errorf("Username = %q", opts.Username)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig not set")
	}
}

type captureLogger struct {
	errors []string
	warns  []string
}

func (l *captureLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.warns = append(l.warns, msg) }

func TestWrapHandler_PanicRecovery(t *testing.T) {
	client := disconnectedClient()
	logger := &captureLogger{}
	client.SetLogger(logger)

	handler := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})

	// Must not propagate the panic
	handler(nil, fakeMessage{topic: "edgeflow/state/led/led_touch"})

	if len(logger.errors) != 1 {
		t.Errorf("got %d error logs, want 1", len(logger.errors))
	}
}

func TestWrapHandler_ErrorLogged(t *testing.T) {
	client := disconnectedClient()
	logger := &captureLogger{}
	client.SetLogger(logger)

	handler := client.wrapHandler(func(string, []byte) error {
		return errors.New("handler failure")
	})

	handler(nil, fakeMessage{topic: "edgeflow/state/led/led_touch"})

	if len(logger.warns) != 1 {
		t.Errorf("got %d warn logs, want 1", len(logger.warns))
	}
}

// fakeMessage implements the paho Message interface for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}
