package mqtt

import "fmt"

// Topic prefixes for the EdgeFlow message bus.
//
// Bridge topics use the flat scheme: edgeflow/{category}/{protocol}/{address}.
// Protocol bridges (LED controllers, GPIO expanders) subscribe to their
// command topics and publish state and acks back.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "edgeflow"

	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "edgeflow/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "edgeflow/system"
)

// Topics provides builders for EdgeFlow MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.BridgeCommand("led", "led_matrix")
//	// Returns: "edgeflow/command/led/led_matrix"
type Topics struct{}

// BridgeCommand returns the topic for commands to a bridge device.
//
// Example: edgeflow/command/led/led_touch
func (Topics) BridgeCommand(protocol, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, protocol, address)
}

// BridgeState returns the topic for device state updates from a bridge.
//
// Example: edgeflow/state/gpio/17
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, address)
}

// BridgeAck returns the topic for command acknowledgements from a bridge.
//
// Example: edgeflow/ack/led/led_board
func (Topics) BridgeAck(protocol, address string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefixBridge, protocol, address)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: edgeflow/health/led
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// CoreEvent returns the topic for core events.
//
// Example: edgeflow/core/event/action_executed
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// CoreActionResult returns the topic for per-action execution results.
//
// Example: edgeflow/core/action/act-123/result
func (Topics) CoreActionResult(actionID string) string {
	return fmt.Sprintf("%s/action/%s/result", TopicPrefixCore, actionID)
}

// SystemStatus returns the system status topic.
//
// Example: edgeflow/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllBridgeStates returns a pattern matching all bridge state updates.
//
// Pattern: edgeflow/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixBridge)
}

// AllBridgeAcks returns a pattern matching all bridge acknowledgements.
//
// Pattern: edgeflow/ack/+/+
func (Topics) AllBridgeAcks() string {
	return fmt.Sprintf("%s/ack/+/+", TopicPrefixBridge)
}

// AllBridgeHealth returns a pattern matching all bridge health updates.
//
// Pattern: edgeflow/health/+
func (Topics) AllBridgeHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefixBridge)
}
