package remote

import (
	"context"
	"errors"
	"testing"
)

func TestAuthMethods(t *testing.T) {
	tests := []struct {
		name    string
		host    HostConfig
		wantErr error
		wantLen int
	}{
		{
			name:    "password auth",
			host:    HostConfig{AuthType: AuthPassword, Password: "secret"},
			wantLen: 1,
		},
		{
			name:    "empty auth type defaults to password",
			host:    HostConfig{Password: "secret"},
			wantLen: 1,
		},
		{
			name:    "password missing",
			host:    HostConfig{AuthType: AuthPassword},
			wantErr: ErrAuthentication,
		},
		{
			name:    "key missing",
			host:    HostConfig{AuthType: AuthKey},
			wantErr: ErrAuthentication,
		},
		{
			name:    "key invalid",
			host:    HostConfig{AuthType: AuthKey, PrivateKey: []byte("not a key")},
			wantErr: ErrAuthentication,
		},
		{
			name:    "unknown auth type",
			host:    HostConfig{AuthType: "kerberos", Password: "x"},
			wantErr: ErrAuthentication,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			methods, err := authMethods(tt.host)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("authMethods: %v", err)
			}
			if len(methods) != tt.wantLen {
				t.Errorf("got %d methods, want %d", len(methods), tt.wantLen)
			}
		})
	}
}

// Connection errors must keep the context error in their chain so the
// engine can tell a timeout from an ordinary failure.
func TestConnectKeepsContextError(t *testing.T) {
	d := NewSSHDialer(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Connect(ctx, HostConfig{
		Addr:     "192.0.2.1",
		Username: "ops",
		AuthType: AuthPassword,
		Password: "secret",
	})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("error = %v, want ErrConnection in chain", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled in chain", err)
	}
}

func TestExecResult_Output(t *testing.T) {
	tests := []struct {
		name string
		res  ExecResult
		want string
	}{
		{"stdout preferred", ExecResult{Stdout: "out", Stderr: "err"}, "out"},
		{"stderr fallback", ExecResult{Stderr: "err"}, "err"},
		{"both empty", ExecResult{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Output(); got != tt.want {
				t.Errorf("Output() = %q, want %q", got, tt.want)
			}
		})
	}
}
