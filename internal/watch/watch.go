package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/tmarsden/edgeflow-core/internal/remote"
)

// Defaults applied when a config leaves the timing fields zero.
const (
	DefaultTimeout       = 60 * time.Second
	DefaultCheckInterval = 3 * time.Second

	// stopWait bounds how long Stop waits for a watch to exit on its own
	// before reclaiming its registry entry.
	stopWait = 2 * time.Second

	// checkExecTimeout bounds a single remote log read.
	checkExecTimeout = 5 * time.Second
)

// notFoundMarker is echoed by the check command when the log file does
// not exist yet.
const notFoundMarker = "LOG_NOT_FOUND"

// Config describes a single readiness watch.
type Config struct {
	HostID       string
	LogFile      string
	ReadyPattern string
	FailPattern  string
	VarName      string

	// Timeout bounds the whole watch. Zero means DefaultTimeout.
	Timeout time.Duration

	// CheckInterval is the pause between remote checks.
	// Zero means DefaultCheckInterval.
	CheckInterval time.Duration
}

func (c Config) validate() error {
	switch {
	case c.HostID == "":
		return fmt.Errorf("%w: host_id required", ErrInvalidConfig)
	case c.LogFile == "":
		return fmt.Errorf("%w: log_file required", ErrInvalidConfig)
	case c.ReadyPattern == "":
		return fmt.Errorf("%w: ready_pattern required", ErrInvalidConfig)
	case c.VarName == "":
		return fmt.Errorf("%w: var_name required", ErrInvalidConfig)
	}
	return nil
}

// checkCommand builds the remote shell command for one log read. tail
// keeps the transfer bounded; the fallback echo marks a missing log.
func checkCommand(logFile string) string {
	return fmt.Sprintf("tail -n 50 %s 2>/dev/null || echo '%s'", logFile, notFoundMarker)
}

// checkState classifies one remote log read.
type checkState int

const (
	stateNotFound checkState = iota
	stateWaiting
	stateReady
	stateFailed
)

// classify inspects log output for the configured patterns. The fail
// pattern wins over the ready pattern when both match.
func classify(output, readyPattern, failPattern string) checkState {
	if strings.TrimSpace(output) == notFoundMarker {
		return stateNotFound
	}
	if failPattern != "" && strings.Contains(output, failPattern) {
		return stateFailed
	}
	if strings.Contains(output, readyPattern) {
		return stateReady
	}
	return stateWaiting
}

// Status is an externally visible snapshot of a running watch.
type Status struct {
	VarName   string    `json:"var_name"`
	HostID    string    `json:"host_id"`
	LogFile   string    `json:"log_file"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   float64   `json:"elapsed_sec"`
}

// HostSource resolves a host id to connection parameters with auth
// material already attached.
type HostSource interface {
	HostConfig(id string) (remote.HostConfig, error)
}

// Variables is the slice of the variable store the watcher writes to.
type Variables interface {
	SetString(name, value string) error
	SetInt(name string, value int64) error
}

// Logger is the minimal logging interface this package needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}
