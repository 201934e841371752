package actuator

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tmarsden/edgeflow-core/internal/infrastructure/mqtt"
)

// Publisher is the slice of the MQTT client the bridge devices need.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// BridgeDevice drives an LED device by publishing command payloads to its
// bridge command topic (edgeflow/command/led/<name>).
type BridgeDevice struct {
	name      string
	publisher Publisher
	qos       byte
	topics    mqtt.Topics
}

// NewBridgeDevice creates a bridge-backed LED device.
func NewBridgeDevice(name string, publisher Publisher, qos byte) *BridgeDevice {
	return &BridgeDevice{
		name:      name,
		publisher: publisher,
		qos:       qos,
	}
}

// Name returns the full device name.
func (d *BridgeDevice) Name() string {
	return d.name
}

func (d *BridgeDevice) publish(cmd any) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("actuator: marshal command: %w", err)
	}
	topic := d.topics.BridgeCommand("led", d.name)
	if err := d.publisher.Publish(topic, payload, d.qos, false); err != nil {
		return fmt.Errorf("actuator: publish to %s: %w", topic, err)
	}
	return nil
}

type deviceCommand struct {
	Op    string `json:"op"`
	Color string `json:"color,omitempty"`
	Level *uint8 `json:"level,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Off stops any animation and blanks the device.
func (d *BridgeDevice) Off() error {
	return d.publish(deviceCommand{Op: "off"})
}

// Fill sets every pixel to the given color.
func (d *BridgeDevice) Fill(color Color) error {
	return d.publish(deviceCommand{Op: "fill", Color: color.Hex()})
}

// SetBrightness sets the device brightness (0-255).
func (d *BridgeDevice) SetBrightness(level uint8) error {
	return d.publish(deviceCommand{Op: "brightness", Level: &level})
}

// StartEffect starts a named built-in effect animation.
func (d *BridgeDevice) StartEffect(name string) error {
	if name == "" {
		return fmt.Errorf("%w: no effect specified", ErrNotSupported)
	}
	return d.publish(deviceCommand{Op: "effect", Name: name})
}

// BridgeMatrix extends BridgeDevice with the matrix display operations.
type BridgeMatrix struct {
	BridgeDevice
}

// NewBridgeMatrix creates a bridge-backed matrix device.
func NewBridgeMatrix(name string, publisher Publisher, qos byte) *BridgeMatrix {
	return &BridgeMatrix{
		BridgeDevice: BridgeDevice{
			name:      name,
			publisher: publisher,
			qos:       qos,
		},
	}
}

type matrixCommand struct {
	Op     string        `json:"op"`
	Text   *TextOptions  `json:"text,omitempty"`
	Image  *ImageOptions `json:"image,omitempty"`
	QR     *QROptions    `json:"qr,omitempty"`
	Filter string        `json:"filter,omitempty"`
}

// DrawText renders a text overlay on the matrix.
func (d *BridgeMatrix) DrawText(opts TextOptions) error {
	if opts.Text == "" {
		return fmt.Errorf("%w: no text specified", ErrNotSupported)
	}
	if opts.Font == "" {
		opts.Font = "pixel9x9"
	}
	return d.publish(matrixCommand{Op: "text", Text: &opts})
}

// DrawImage renders an image file on the matrix.
func (d *BridgeMatrix) DrawImage(opts ImageOptions) error {
	if opts.Path == "" {
		return fmt.Errorf("%w: no image path specified", ErrNotSupported)
	}
	return d.publish(matrixCommand{Op: "image", Image: &opts})
}

// DrawQR renders a QR code on the matrix.
func (d *BridgeMatrix) DrawQR(opts QROptions) error {
	if opts.Text == "" {
		return fmt.Errorf("%w: no QR text specified", ErrNotSupported)
	}
	return d.publish(matrixCommand{Op: "qrcode", QR: &opts})
}

// ApplyFilter applies a named post-processing filter.
func (d *BridgeMatrix) ApplyFilter(name string) error {
	if name == "" || name == "none" || name == "stop" {
		return d.StopFilter()
	}
	return d.publish(matrixCommand{Op: "filter", Filter: name})
}

// StopFilter removes any active filter.
func (d *BridgeMatrix) StopFilter() error {
	return d.publish(matrixCommand{Op: "filter_stop"})
}

// StopText removes any active text overlay.
func (d *BridgeMatrix) StopText() error {
	return d.publish(matrixCommand{Op: "text_stop"})
}

// BridgeGPIO drives output pins by publishing to per-pin command topics
// (edgeflow/command/gpio/<pin>).
type BridgeGPIO struct {
	publisher Publisher
	qos       byte
	topics    mqtt.Topics
}

// NewBridgeGPIO creates a bridge-backed GPIO driver.
func NewBridgeGPIO(publisher Publisher, qos byte) *BridgeGPIO {
	return &BridgeGPIO{
		publisher: publisher,
		qos:       qos,
	}
}

type gpioCommand struct {
	Op    string `json:"op"`
	Mode  string `json:"mode,omitempty"`
	Level *bool  `json:"level,omitempty"`
}

func (g *BridgeGPIO) publish(pin uint8, cmd gpioCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("actuator: marshal gpio command: %w", err)
	}
	topic := g.topics.BridgeCommand("gpio", strconv.Itoa(int(pin)))
	if err := g.publisher.Publish(topic, payload, g.qos, false); err != nil {
		return fmt.Errorf("actuator: publish to %s: %w", topic, err)
	}
	return nil
}

// ConfigureOutput puts the pin into output mode.
func (g *BridgeGPIO) ConfigureOutput(pin uint8) error {
	return g.publish(pin, gpioCommand{Op: "configure", Mode: "output"})
}

// SetLevel drives the pin high or low.
func (g *BridgeGPIO) SetLevel(pin uint8, level bool) error {
	return g.publish(pin, gpioCommand{Op: "set", Level: &level})
}
