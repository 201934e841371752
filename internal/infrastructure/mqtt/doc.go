// Package mqtt is the broker client used as the internal message bus.
//
// Actuator commands travel from the core to protocol bridges (LED
// controllers, GPIO expanders) over broker topics; bridges publish state and
// acks back. The Topics type centralises topic naming so publishers and
// subscribers cannot drift apart.
//
// The client keeps its own subscription table and re-arms every subscription
// after a reconnect, publishes a retained online/offline status on the
// system topic, and arms a last-will message so other services can tell a
// crash from a clean shutdown.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.BridgeCommand("led", "led_matrix")
//	client.Publish(topic, []byte(`{"op":"fill","color":"#FF0000"}`), 1, false)
//
// Production deployments set cfg.Broker.TLS; anonymous plaintext access is
// for local development only.
package mqtt
