package catalog

import "errors"

// Sentinel errors for catalog operations.
var (
	// ErrHostNotFound is returned when a host does not exist.
	ErrHostNotFound = errors.New("catalog: host not found")

	// ErrHostExists is returned when creating a host with a duplicate ID.
	ErrHostExists = errors.New("catalog: host already exists")

	// ErrCommandNotFound is returned when a command does not exist.
	ErrCommandNotFound = errors.New("catalog: command not found")

	// ErrCommandExists is returned when creating a duplicate command.
	ErrCommandExists = errors.New("catalog: command already exists")

	// ErrInvalidHost is returned when a host fails validation.
	ErrInvalidHost = errors.New("catalog: invalid host")

	// ErrInvalidCommand is returned when a command fails validation.
	ErrInvalidCommand = errors.New("catalog: invalid command")
)
