package variable

import "errors"

// Sentinel errors returned by the variable store.
var (
	// ErrNotFound is returned when a variable does not exist.
	ErrNotFound = errors.New("variable: not found")

	// ErrInvalidName is returned for empty or oversized variable names.
	ErrInvalidName = errors.New("variable: invalid name")
)
