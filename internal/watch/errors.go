package watch

import "errors"

var (
	// ErrNotFound is returned when no watch is running under a var name.
	ErrNotFound = errors.New("watch: not found")

	// ErrInvalidConfig is returned when a watch config is missing
	// required fields.
	ErrInvalidConfig = errors.New("watch: invalid config")
)
