package remote

import (
	"context"
	"time"
)

// AuthType selects how a host is authenticated.
type AuthType string

// Supported authentication types.
const (
	AuthPassword AuthType = "password"
	AuthKey      AuthType = "key"
)

// HostConfig describes a single SSH endpoint.
type HostConfig struct {
	Addr     string
	Port     int
	Username string
	AuthType AuthType

	// Password is used when AuthType is AuthPassword.
	Password string

	// PrivateKey holds PEM-encoded key material when AuthType is AuthKey.
	PrivateKey []byte

	// ConnectTimeout bounds TCP dial plus SSH handshake.
	// Zero means defaultConnectTimeout.
	ConnectTimeout time.Duration
}

// ExecResult is the outcome of a remote command.
//
// A command that ran to completion with a non-zero status is a successful
// Exec; the status is carried in ExitCode.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stdout if non-empty, otherwise stderr. Most callers want
// a single output string for variable publication and logging.
func (r ExecResult) Output() string {
	if r.Stdout != "" {
		return r.Stdout
	}
	return r.Stderr
}

// Session is an established connection to a host.
type Session interface {
	// Exec runs a command and waits for completion or context cancellation.
	Exec(ctx context.Context, cmd string) (ExecResult, error)

	// Close tears down the underlying connection.
	Close() error
}

// Dialer establishes sessions to hosts.
type Dialer interface {
	Connect(ctx context.Context, host HostConfig) (Session, error)
}

// Logger is the minimal logging interface this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
