package actuator

import "errors"

var (
	// ErrDeviceNotFound is returned when a device name or alias does not
	// resolve to a registered device.
	ErrDeviceNotFound = errors.New("actuator: device not found")

	// ErrNotSupported is returned for operations a device class cannot
	// perform, such as text rendering on a non-matrix device.
	ErrNotSupported = errors.New("actuator: operation not supported")

	// ErrInvalidColor is returned when a color string cannot be parsed.
	ErrInvalidColor = errors.New("actuator: invalid color")
)
