package action

import "errors"

var (
	// ErrInvalidAction is returned when an action is missing its payload
	// or a required field.
	ErrInvalidAction = errors.New("action: invalid action")

	// ErrMissingHost is returned when a remote action names no host.
	ErrMissingHost = errors.New("action: missing host reference")

	// ErrQueueFull is returned when admission fails within the wait
	// window.
	ErrQueueFull = errors.New("action: queue full")

	// ErrExecutionTimeout is returned to a synchronous caller whose wait
	// expired. The worker may still be running the handler.
	ErrExecutionTimeout = errors.New("action: execution timeout")

	// ErrExecutionFailed is returned when a handler completed with a
	// failed result.
	ErrExecutionFailed = errors.New("action: execution failed")

	// ErrNotRunning is returned when the engine has not been started or
	// was already stopped.
	ErrNotRunning = errors.New("action: engine not running")

	// ErrNotSupported is returned for action kinds or device operations
	// that are declared but not executable.
	ErrNotSupported = errors.New("action: not supported")

	// ErrHostNotFound is returned when a host reference resolves neither
	// in the local table nor in the catalog.
	ErrHostNotFound = errors.New("action: host not found")

	// ErrCommandNotFound is returned when a referenced command id is
	// unknown to the catalog.
	ErrCommandNotFound = errors.New("action: command not found")

	// ErrCommandDisabled is returned when a referenced command exists
	// but is disabled.
	ErrCommandDisabled = errors.New("action: command disabled")

	// ErrTemplateNotFound is returned for operations on unknown
	// template ids.
	ErrTemplateNotFound = errors.New("action: template not found")

	// ErrTemplateExists is returned when adding a template whose id is
	// already taken.
	ErrTemplateExists = errors.New("action: template already exists")

	// ErrTemplateDisabled is returned when executing a disabled
	// template. Usage statistics are not touched.
	ErrTemplateDisabled = errors.New("action: template disabled")

	// ErrTemplateLimit is returned when the template table is full.
	ErrTemplateLimit = errors.New("action: template limit reached")

	// ErrInvalidTemplate is returned when a template fails validation.
	ErrInvalidTemplate = errors.New("action: invalid template")
)
