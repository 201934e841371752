package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const defaultConnectTimeout = 10 * time.Second

// SSHDialer connects to hosts over SSH.
//
// Host keys are not verified: hosts live on the site's management network
// and are registered by the operator, the same trust model as the rest of
// the controller.
type SSHDialer struct {
	logger Logger
}

// NewSSHDialer creates an SSH dialer. logger may be nil.
func NewSSHDialer(logger Logger) *SSHDialer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SSHDialer{logger: logger}
}

// Connect establishes an SSH session to the host.
func (d *SSHDialer) Connect(ctx context.Context, host HostConfig) (Session, error) {
	auth, err := authMethods(host)
	if err != nil {
		return nil, err
	}

	timeout := host.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	port := host.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host.Addr, fmt.Sprintf("%d", port))

	cfg := &ssh.ClientConfig{
		User:            host.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // Hosts are operator-registered on a trusted network
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrConnection, addr, err)
	}

	// Bound the handshake; cleared once the session is up.
	_ = conn.SetDeadline(time.Now().Add(timeout))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, fmt.Errorf("%w: %s@%s: %w", ErrAuthentication, host.Username, addr, err)
		}
		return nil, fmt.Errorf("%w: handshake with %s: %w", ErrConnection, addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	d.logger.Debug("ssh session established", "addr", addr, "user", host.Username)

	return &sshSession{
		client: ssh.NewClient(sshConn, chans, reqs),
		addr:   addr,
		logger: d.logger,
	}, nil
}

// authMethods builds the SSH auth methods for a host config.
func authMethods(host HostConfig) ([]ssh.AuthMethod, error) {
	switch host.AuthType {
	case AuthKey:
		if len(host.PrivateKey) == 0 {
			return nil, fmt.Errorf("%w: no private key provided", ErrAuthentication)
		}
		signer, err := ssh.ParsePrivateKey(host.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid private key: %w", ErrAuthentication, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil

	case AuthPassword, "":
		if host.Password == "" {
			return nil, fmt.Errorf("%w: no password provided", ErrAuthentication)
		}
		return []ssh.AuthMethod{ssh.Password(host.Password)}, nil

	default:
		return nil, fmt.Errorf("%w: unknown auth type %q", ErrAuthentication, host.AuthType)
	}
}

// sshSession wraps an ssh.Client as a Session.
type sshSession struct {
	client *ssh.Client
	addr   string
	logger Logger
}

// Exec runs a command on the session. The command is killed when ctx is
// cancelled. A non-zero exit status is returned in the result, not as an
// error.
func (s *sshSession) Exec(ctx context.Context, cmd string) (ExecResult, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return ExecResult{}, fmt.Errorf("%w: creating session on %s: %w", ErrConnection, s.addr, err)
	}
	defer sess.Close() //nolint:errcheck // Session close after Run is best effort

	var stdout, stderr strings.Builder
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL) //nolint:errcheck // Session may already be gone
		_ = sess.Close()             //nolint:errcheck
		// Wrap ctx.Err() so the engine can tell a timeout from a failure.
		return ExecResult{}, fmt.Errorf("%w: %w", ErrCommandFailed, ctx.Err())

	case err := <-done:
		res := ExecResult{
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				// Command ran; carry the status.
				res.ExitCode = exitErr.ExitStatus()
				return res, nil
			}
			return res, fmt.Errorf("%w: %w", ErrCommandFailed, err)
		}
		return res, nil
	}
}

// Close closes the underlying SSH connection.
func (s *sshSession) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("closing ssh connection to %s: %w", s.addr, err)
	}
	return nil
}
