// Package actuator defines the contract between the action engine and the
// actuator subsystem, plus MQTT-backed implementations that drive protocol
// bridges.
//
// Devices are addressed by full name (led_touch, led_board, led_matrix) or
// by short alias (touch, board, matrix). The Registry resolves aliases and
// hands out Device handles. Advanced display operations (text, images, QR
// codes, filters) are only available on devices that implement MatrixDevice.
//
// The bridge implementations do not talk to hardware. They publish JSON
// command payloads to per-device MQTT topics; a protocol bridge subscribed
// to those topics performs the actual register programming.
package actuator
