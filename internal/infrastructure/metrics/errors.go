package metrics

import "errors"

var (
	// ErrDisabled is returned when metrics are disabled in configuration.
	ErrDisabled = errors.New("metrics: disabled in configuration")

	// ErrConnectionFailed is returned when the InfluxDB server cannot be
	// reached or reports unhealthy.
	ErrConnectionFailed = errors.New("metrics: connection failed")

	// ErrNotConnected is returned by health checks after Close.
	ErrNotConnected = errors.New("metrics: not connected")
)
