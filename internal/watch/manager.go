package watch

import (
	"context"
	"sync"
	"time"

	"github.com/tmarsden/edgeflow-core/internal/remote"
)

// entry is one running watch. The polling goroutine owns all fields; the
// manager only touches cancel and done.
type entry struct {
	cfg       Config
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// Manager starts and tracks readiness watches, keyed by var name.
type Manager struct {
	hosts  HostSource
	dialer remote.Dialer
	vars   Variables
	logger Logger

	mu      sync.Mutex
	watches map[string]*entry
}

// NewManager creates a watch manager.
func NewManager(hosts HostSource, dialer remote.Dialer, vars Variables, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		hosts:   hosts,
		dialer:  dialer,
		vars:    vars,
		logger:  logger,
		watches: make(map[string]*entry),
	}
}

// Start begins a watch. A running watch under the same var name is
// stopped first, then the status variable is set to "checking" and the
// polling goroutine spawned.
func (m *Manager) Start(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}

	// Evict-and-replace keeps one watch per variable.
	if err := m.Stop(cfg.VarName); err == nil {
		m.logger.Info("evicted previous watch", "var_name", cfg.VarName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		cfg:       cfg,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.watches[cfg.VarName] = e
	m.mu.Unlock()

	m.setStatus(cfg.VarName, "checking")
	m.logger.Info("watch started",
		"var_name", cfg.VarName,
		"host_id", cfg.HostID,
		"log_file", cfg.LogFile,
		"timeout", cfg.Timeout,
	)

	go m.run(ctx, e)
	return nil
}

// Stop requests a watch to stop and waits briefly for it to exit. If the
// goroutine does not finish in time (a remote check can block on a slow
// host), the registry entry is reclaimed anyway and the goroutine cleans
// up after itself when the cancelled check returns.
func (m *Manager) Stop(varName string) error {
	m.mu.Lock()
	e, ok := m.watches[varName]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	e.cancel()

	select {
	case <-e.done:
	case <-time.After(stopWait):
		m.logger.Warn("watch did not stop in time, reclaiming entry", "var_name", varName)
	}

	m.remove(varName, e)
	return nil
}

// StopAll stops every running watch. Used at shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	names := make([]string, 0, len(m.watches))
	for name := range m.watches {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		_ = m.Stop(name)
	}
}

// Running reports whether a watch is active under the var name.
func (m *Manager) Running(varName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watches[varName]
	return ok
}

// Count returns the number of active watches.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

// List returns a snapshot of all active watches.
func (m *Manager) List() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	statuses := make([]Status, 0, len(m.watches))
	for _, e := range m.watches {
		statuses = append(statuses, Status{
			VarName:   e.cfg.VarName,
			HostID:    e.cfg.HostID,
			LogFile:   e.cfg.LogFile,
			StartedAt: e.startedAt,
			Elapsed:   now.Sub(e.startedAt).Seconds(),
		})
	}
	return statuses
}

// run is the polling loop. It owns the entry and removes it from the
// manager on every exit path.
func (m *Manager) run(ctx context.Context, e *entry) {
	defer close(e.done)
	defer m.remove(e.cfg.VarName, e)

	deadline := e.startedAt.Add(e.cfg.Timeout)

	for {
		if ctx.Err() != nil {
			m.logger.Debug("watch cancelled", "var_name", e.cfg.VarName)
			return
		}
		if time.Now().After(deadline) {
			m.logger.Warn("watch timeout",
				"var_name", e.cfg.VarName,
				"timeout", e.cfg.Timeout,
			)
			m.setStatus(e.cfg.VarName, "timeout")
			return
		}

		output, err := m.readLog(ctx, e.cfg)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient failures retry on the next tick.
			m.logger.Warn("log check failed, will retry",
				"var_name", e.cfg.VarName,
				"error", err,
			)
		} else {
			switch classify(output, e.cfg.ReadyPattern, e.cfg.FailPattern) {
			case stateFailed:
				m.logger.Warn("service failed",
					"var_name", e.cfg.VarName,
					"pattern", e.cfg.FailPattern,
				)
				m.setStatus(e.cfg.VarName, "failed")
				return
			case stateReady:
				m.logger.Info("service ready",
					"var_name", e.cfg.VarName,
					"pattern", e.cfg.ReadyPattern,
				)
				m.setStatus(e.cfg.VarName, "ready")
				m.setReadyTime(e.cfg.VarName)
				return
			case stateNotFound:
				m.logger.Debug("log not found yet", "var_name", e.cfg.VarName)
			case stateWaiting:
				m.logger.Debug("pattern not matched yet", "var_name", e.cfg.VarName)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.CheckInterval):
		}
	}
}

// readLog performs a single remote log read.
func (m *Manager) readLog(ctx context.Context, cfg Config) (string, error) {
	host, err := m.hosts.HostConfig(cfg.HostID)
	if err != nil {
		return "", err
	}

	execCtx, cancel := context.WithTimeout(ctx, checkExecTimeout)
	defer cancel()

	session, err := m.dialer.Connect(execCtx, host)
	if err != nil {
		return "", err
	}
	defer session.Close()

	res, err := session.Exec(execCtx, checkCommand(cfg.LogFile))
	if err != nil {
		return "", err
	}
	return res.Output(), nil
}

// remove deletes the entry, but only while it is still the current watch
// for its var name. A replacement started after eviction must survive.
func (m *Manager) remove(varName string, e *entry) {
	m.mu.Lock()
	if current, ok := m.watches[varName]; ok && current == e {
		delete(m.watches, varName)
	}
	m.mu.Unlock()
}

func (m *Manager) setStatus(varName, status string) {
	name := varName + ".status"
	if err := m.vars.SetString(name, status); err != nil {
		m.logger.Warn("failed to set status variable", "name", name, "error", err)
	}
}

func (m *Manager) setReadyTime(varName string) {
	name := varName + ".ready_time"
	if err := m.vars.SetInt(name, time.Now().Unix()); err != nil {
		m.logger.Warn("failed to set ready time variable", "name", name, "error", err)
	}
}
