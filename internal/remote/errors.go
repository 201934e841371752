package remote

import "errors"

// Sentinel errors for remote session handling.
var (
	// ErrConnection is returned when the SSH connection cannot be established.
	ErrConnection = errors.New("remote: connection failed")

	// ErrAuthentication is returned for missing or invalid credentials.
	ErrAuthentication = errors.New("remote: authentication failed")

	// ErrCommandFailed is returned when a command cannot be started or the
	// session breaks mid-execution. A non-zero exit status is not an error;
	// it is reported through ExecResult.ExitCode.
	ErrCommandFailed = errors.New("remote: command execution failed")

	// ErrKeyNotFound is returned when a private key cannot be resolved.
	ErrKeyNotFound = errors.New("remote: key not found")
)
