package actuator

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// fakePublisher captures published messages for assertions.
type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePublisher) last(t *testing.T) (string, map[string]any) {
	t.Helper()
	if len(p.payloads) == 0 {
		t.Fatal("nothing published")
	}
	var decoded map[string]any
	if err := json.Unmarshal(p.payloads[len(p.payloads)-1], &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return p.topics[len(p.topics)-1], decoded
}

func TestBridgeDevice(t *testing.T) {
	t.Run("off", func(t *testing.T) {
		pub := &fakePublisher{}
		device := NewBridgeDevice("led_touch", pub, 1)

		if err := device.Off(); err != nil {
			t.Fatalf("Off() error = %v", err)
		}

		topic, cmd := pub.last(t)
		if topic != "edgeflow/command/led/led_touch" {
			t.Errorf("topic = %q", topic)
		}
		if cmd["op"] != "off" {
			t.Errorf("op = %v, want off", cmd["op"])
		}
	})

	t.Run("fill carries hex color", func(t *testing.T) {
		pub := &fakePublisher{}
		device := NewBridgeDevice("led_board", pub, 1)

		if err := device.Fill(Color{255, 0, 0}); err != nil {
			t.Fatalf("Fill() error = %v", err)
		}

		_, cmd := pub.last(t)
		if cmd["op"] != "fill" || cmd["color"] != "#FF0000" {
			t.Errorf("cmd = %v", cmd)
		}
	})

	t.Run("brightness zero is carried", func(t *testing.T) {
		pub := &fakePublisher{}
		device := NewBridgeDevice("led_touch", pub, 1)

		if err := device.SetBrightness(0); err != nil {
			t.Fatalf("SetBrightness() error = %v", err)
		}

		_, cmd := pub.last(t)
		level, ok := cmd["level"].(float64)
		if !ok || level != 0 {
			t.Errorf("level = %v, want 0", cmd["level"])
		}
	})

	t.Run("effect requires name", func(t *testing.T) {
		pub := &fakePublisher{}
		device := NewBridgeDevice("led_touch", pub, 1)

		if err := device.StartEffect(""); !errors.Is(err, ErrNotSupported) {
			t.Errorf("StartEffect(\"\") error = %v, want ErrNotSupported", err)
		}
		if len(pub.payloads) != 0 {
			t.Error("empty effect should not publish")
		}

		if err := device.StartEffect("rainbow"); err != nil {
			t.Fatalf("StartEffect(rainbow) error = %v", err)
		}
		_, cmd := pub.last(t)
		if cmd["op"] != "effect" || cmd["name"] != "rainbow" {
			t.Errorf("cmd = %v", cmd)
		}
	})

	t.Run("publish failure wrapped", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker down")}
		device := NewBridgeDevice("led_touch", pub, 1)

		err := device.Off()
		if err == nil || !strings.Contains(err.Error(), "broker down") {
			t.Errorf("Off() error = %v, want wrapped broker error", err)
		}
	})
}

func TestBridgeMatrix(t *testing.T) {
	t.Run("text defaults font", func(t *testing.T) {
		pub := &fakePublisher{}
		matrix := NewBridgeMatrix("led_matrix", pub, 1)

		if err := matrix.DrawText(TextOptions{Text: "hello"}); err != nil {
			t.Fatalf("DrawText() error = %v", err)
		}

		topic, cmd := pub.last(t)
		if topic != "edgeflow/command/led/led_matrix" {
			t.Errorf("topic = %q", topic)
		}
		text, _ := cmd["text"].(map[string]any)
		if text["text"] != "hello" || text["font"] != "pixel9x9" {
			t.Errorf("text payload = %v", text)
		}
	})

	t.Run("text requires content", func(t *testing.T) {
		matrix := NewBridgeMatrix("led_matrix", &fakePublisher{}, 1)
		if err := matrix.DrawText(TextOptions{}); !errors.Is(err, ErrNotSupported) {
			t.Errorf("DrawText(empty) error = %v, want ErrNotSupported", err)
		}
	})

	t.Run("image requires path", func(t *testing.T) {
		matrix := NewBridgeMatrix("led_matrix", &fakePublisher{}, 1)
		if err := matrix.DrawImage(ImageOptions{}); !errors.Is(err, ErrNotSupported) {
			t.Errorf("DrawImage(empty) error = %v, want ErrNotSupported", err)
		}
	})

	t.Run("qr", func(t *testing.T) {
		pub := &fakePublisher{}
		matrix := NewBridgeMatrix("led_matrix", pub, 1)

		if err := matrix.DrawQR(QROptions{Text: "https://example.net", ECC: "M"}); err != nil {
			t.Fatalf("DrawQR() error = %v", err)
		}
		_, cmd := pub.last(t)
		qr, _ := cmd["qr"].(map[string]any)
		if cmd["op"] != "qrcode" || qr["text"] != "https://example.net" {
			t.Errorf("cmd = %v", cmd)
		}
	})

	t.Run("filter stop words map to filter_stop", func(t *testing.T) {
		for _, name := range []string{"", "none", "stop"} {
			pub := &fakePublisher{}
			matrix := NewBridgeMatrix("led_matrix", pub, 1)

			if err := matrix.ApplyFilter(name); err != nil {
				t.Fatalf("ApplyFilter(%q) error = %v", name, err)
			}
			_, cmd := pub.last(t)
			if cmd["op"] != "filter_stop" {
				t.Errorf("ApplyFilter(%q) op = %v, want filter_stop", name, cmd["op"])
			}
		}
	})

	t.Run("named filter", func(t *testing.T) {
		pub := &fakePublisher{}
		matrix := NewBridgeMatrix("led_matrix", pub, 1)

		if err := matrix.ApplyFilter("plasma"); err != nil {
			t.Fatalf("ApplyFilter() error = %v", err)
		}
		_, cmd := pub.last(t)
		if cmd["op"] != "filter" || cmd["filter"] != "plasma" {
			t.Errorf("cmd = %v", cmd)
		}
	})

	t.Run("stop text", func(t *testing.T) {
		pub := &fakePublisher{}
		matrix := NewBridgeMatrix("led_matrix", pub, 1)

		if err := matrix.StopText(); err != nil {
			t.Fatalf("StopText() error = %v", err)
		}
		_, cmd := pub.last(t)
		if cmd["op"] != "text_stop" {
			t.Errorf("op = %v, want text_stop", cmd["op"])
		}
	})
}

func TestBridgeGPIO(t *testing.T) {
	pub := &fakePublisher{}
	gpio := NewBridgeGPIO(pub, 1)

	if err := gpio.ConfigureOutput(17); err != nil {
		t.Fatalf("ConfigureOutput() error = %v", err)
	}
	topic, cmd := pub.last(t)
	if topic != "edgeflow/command/gpio/17" {
		t.Errorf("topic = %q", topic)
	}
	if cmd["op"] != "configure" || cmd["mode"] != "output" {
		t.Errorf("cmd = %v", cmd)
	}

	if err := gpio.SetLevel(17, false); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	_, cmd = pub.last(t)
	level, ok := cmd["level"].(bool)
	if cmd["op"] != "set" || !ok || level != false {
		t.Errorf("cmd = %v", cmd)
	}
}
