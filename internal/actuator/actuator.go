package actuator

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an RGB triple.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex returns the color as an uppercase #RRGGBB string.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// namedColors maps well-known color names to RGB values.
var namedColors = map[string]Color{
	"black":   {0, 0, 0},
	"white":   {255, 255, 255},
	"red":     {255, 0, 0},
	"green":   {0, 255, 0},
	"blue":    {0, 0, 255},
	"yellow":  {255, 255, 0},
	"cyan":    {0, 255, 255},
	"magenta": {255, 0, 255},
	"orange":  {255, 165, 0},
	"purple":  {128, 0, 128},
	"pink":    {255, 192, 203},
}

// ParseColor parses a color string in any of three forms:
//
//   - hex: "#FF8800" or "FF8800"
//   - rgb: "rgb(255, 136, 0)"
//   - named: "orange" (case-insensitive)
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Color{}, fmt.Errorf("%w: empty string", ErrInvalidColor)
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 6 && isHex(hex) {
		r, _ := strconv.ParseUint(hex[0:2], 16, 8)
		g, _ := strconv.ParseUint(hex[2:4], 16, 8)
		b, _ := strconv.ParseUint(hex[4:6], 16, 8)
		return Color{uint8(r), uint8(g), uint8(b)}, nil
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "rgb(") && strings.HasSuffix(lower, ")") {
		inner := lower[len("rgb(") : len(lower)-1]
		parts := strings.Split(inner, ",")
		if len(parts) != 3 {
			return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		var vals [3]uint8
		for i, p := range parts {
			n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
			}
			vals[i] = uint8(n)
		}
		return Color{vals[0], vals[1], vals[2]}, nil
	}

	if c, ok := namedColors[lower]; ok {
		return c, nil
	}

	return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// TextOptions configures a matrix text overlay.
type TextOptions struct {
	Text   string `json:"text"`
	Font   string `json:"font,omitempty"`
	Color  string `json:"color,omitempty"`
	Scroll string `json:"scroll,omitempty"`
	Loop   bool   `json:"loop,omitempty"`
	Speed  int    `json:"speed,omitempty"`
}

// ImageOptions configures a matrix image draw.
type ImageOptions struct {
	Path   string `json:"path"`
	Center bool   `json:"center,omitempty"`
}

// QROptions configures a matrix QR code draw.
type QROptions struct {
	Text  string `json:"text"`
	ECC   string `json:"ecc,omitempty"`
	Color string `json:"color,omitempty"`
}

// Device is the handle the action engine holds for a single LED device.
type Device interface {
	// Off stops any running animation and blanks the device.
	Off() error

	// Fill sets every pixel to the given color.
	Fill(color Color) error

	// SetBrightness sets the device brightness (0-255).
	SetBrightness(level uint8) error

	// StartEffect starts a named built-in effect animation.
	StartEffect(name string) error
}

// MatrixDevice extends Device with display operations only a pixel matrix
// can perform.
type MatrixDevice interface {
	Device

	DrawText(opts TextOptions) error
	DrawImage(opts ImageOptions) error
	DrawQR(opts QROptions) error
	ApplyFilter(name string) error
	StopFilter() error
	StopText() error
}

// GPIO drives digital output pins through a protocol bridge.
type GPIO interface {
	// ConfigureOutput puts the pin into output mode.
	ConfigureOutput(pin uint8) error

	// SetLevel drives the pin high (true) or low (false).
	SetLevel(pin uint8, level bool) error
}
