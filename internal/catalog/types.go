package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tmarsden/edgeflow-core/internal/remote"
)

// Host is a registered SSH endpoint.
type Host struct {
	ID       string          `json:"id"`
	Addr     string          `json:"addr"`
	Port     int             `json:"port"`
	Username string          `json:"username"`
	AuthType remote.AuthType `json:"auth_type"`

	// KeyID names a keystore entry for key auth.
	KeyID *string `json:"key_id,omitempty"`

	// Password is held in memory only and never persisted or serialised.
	Password string `json:"-"`

	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// DeepCopy returns an independent copy of the host.
func (h *Host) DeepCopy() *Host {
	if h == nil {
		return nil
	}
	out := *h
	if h.KeyID != nil {
		v := *h.KeyID
		out.KeyID = &v
	}
	if h.LastUsedAt != nil {
		t := *h.LastUsedAt
		out.LastUsedAt = &t
	}
	return &out
}

/// Scrub returns a copy safe for listings: the password is dropped.
func (h *Host) Scrub() *Host {
	out := h.DeepCopy()
	out.Password = ""
	return out
}

// Command is a named command definition bound to a host.
type Command struct {
	ID          string  `json:"id"`
	HostID      string  `json:"host_id"`
	Name        string  `json:"name"`
	Command     string  `json:"command"`
	Description *string `json:"description,omitempty"`

	// VarName, when set, is the prefix under which execution results are
	// published to the variable store.
	VarName *string `json:"var_name,omitempty"`

	TimeoutSec int  `json:"timeout_sec"`
	Nohup      bool `json:"nohup"`
	Enabled    bool `json:"enabled"`

	// Service readiness options. ServiceMode only has effect together
	// with Nohup and a VarName.
	ServiceMode          bool    `json:"service_mode"`
	ReadyPattern         *string `json:"ready_pattern,omitempty"`
	FailPattern          *string `json:"fail_pattern,omitempty"`
	ReadyTimeoutSec      int     `json:"ready_timeout_sec"`
	ReadyCheckIntervalMS int     `json:"ready_check_interval_ms"`

	CreatedAt  time.Time  `json:"created_at"`
	LastExecAt *time.Time `json:"last_exec_at,omitempty"`
}

// DeepCopy returns an independent copy of the command.
func (c *Command) DeepCopy() *Command {
	if c == nil {
		return nil
	}
	out := *c
	copyStr := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := *s
		return &v
	}
	out.Description = copyStr(c.Description)
	out.VarName = copyStr(c.VarName)
	out.ReadyPattern = copyStr(c.ReadyPattern)
	out.FailPattern = copyStr(c.FailPattern)
	if c.LastExecAt != nil {
		t := *c.LastExecAt
		out.LastExecAt = &t
	}
	return &out
}

// GenerateID creates a unique identifier for hosts and commands.
func GenerateID() string {
	return uuid.New().String()
}

// ValidateHost checks required host fields.
func ValidateHost(h *Host) error {
	if h.Addr == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidHost)
	}
	if h.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidHost)
	}
	if h.Port < 0 || h.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidHost, h.Port)
	}
	switch h.AuthType {
	case remote.AuthPassword, remote.AuthKey, "":
	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrInvalidHost, h.AuthType)
	}
	if h.AuthType == remote.AuthKey && (h.KeyID == nil || *h.KeyID == "") {
		return fmt.Errorf("%w: key auth requires key_id", ErrInvalidHost)
	}
	return nil
}

// ValidateCommand checks required command fields.
func ValidateCommand(c *Command) error {
	if c.HostID == "" {
		return fmt.Errorf("%w: host_id is required", ErrInvalidCommand)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCommand)
	}
	if c.Command == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidCommand)
	}
	if c.TimeoutSec < 0 {
		return fmt.Errorf("%w: timeout_sec must not be negative", ErrInvalidCommand)
	}
	if c.ServiceMode && (c.VarName == nil || *c.VarName == "") {
		return fmt.Errorf("%w: service_mode requires var_name", ErrInvalidCommand)
	}
	return nil
}
