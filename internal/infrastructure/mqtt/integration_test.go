//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/tmarsden/edgeflow-core/internal/infrastructure/config"
)

// These tests need a broker listening on 127.0.0.1:1883:
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func dialBroker(t *testing.T, clientID string) *Client {
	t.Helper()
	client, err := Connect(config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck
	return client
}

func TestIntegrationSubscriptionBookkeeping(t *testing.T) {
	client := dialBroker(t, "edgeflow-int-subs")

	topics := []string{
		"edgeflow/int/a",
		"edgeflow/int/b",
		"edgeflow/int/c",
	}
	noop := func(string, []byte) error { return nil }

	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, noop); err != nil {
			t.Fatalf("Subscribe(%s): %v", topic, err)
		}
	}
	if n := client.SubscriptionCount(); n != len(topics) {
		t.Errorf("SubscriptionCount = %d, want %d", n, len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if client.HasSubscription(topics[0]) {
		t.Errorf("subscription to %s survived Unsubscribe", topics[0])
	}
	if n := client.SubscriptionCount(); n != len(topics)-1 {
		t.Errorf("SubscriptionCount = %d, want %d", n, len(topics)-1)
	}
}

func TestIntegrationRoundtrip(t *testing.T) {
	pub := dialBroker(t, "edgeflow-int-pub")
	sub := dialBroker(t, "edgeflow-int-sub")

	const topic = "edgeflow/int/roundtrip"
	const want = "payload-42"

	received := make(chan string, 1)
	var once sync.Once
	if err := sub.Subscribe(topic, 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Give the broker a moment to register the subscription.
	time.Sleep(100 * time.Millisecond)

	if err := pub.PublishString(topic, want, 1, false); err != nil {
		t.Fatalf("PublishString: %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("received %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("timed out waiting for message")
	}
}

func TestIntegrationHealthAndCallbacks(t *testing.T) {
	client := dialBroker(t, "edgeflow-int-health")

	client.SetOnConnect(func() {})
	client.SetOnDisconnect(func(error) {})
	client.SetOnConnect(nil)
	client.SetOnDisconnect(nil)

	if !client.IsConnected() {
		t.Error("IsConnected = false right after Connect")
	}
}
