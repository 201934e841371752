package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides cached access to the host and command catalogs.
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// cache-invalidating CRUD operations. Runtime-only host passwords survive
// in the cache across CRUD operations but are lost on restart.
//
// All public methods are thread-safe.
type Registry struct {
	hosts    HostRepository
	commands CommandRepository

	cacheMu   sync.RWMutex
	hostsByID map[string]*Host
	cmdsByID  map[string]*Command

	logger Logger
}

// NewRegistry creates a new catalog registry.
func NewRegistry(hosts HostRepository, commands CommandRepository) *Registry {
	return &Registry{
		hosts:     hosts,
		commands:  commands,
		hostsByID: make(map[string]*Host),
		cmdsByID:  make(map[string]*Command),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads hosts and commands from the repositories.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	hosts, err := r.hosts.List(ctx)
	if err != nil {
		return fmt.Errorf("loading hosts: %w", err)
	}
	cmds, err := r.commands.List(ctx)
	if err != nil {
		return fmt.Errorf("loading commands: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.hostsByID = make(map[string]*Host, len(hosts))
	for i := range hosts {
		h := hosts[i]
		r.hostsByID[h.ID] = h.DeepCopy()
	}
	r.cmdsByID = make(map[string]*Command, len(cmds))
	for i := range cmds {
		c := cmds[i]
		r.cmdsByID[c.ID] = c.DeepCopy()
	}

	r.logger.Info("catalog cache refreshed", "hosts", len(hosts), "commands", len(cmds))
	return nil
}

// GetHost retrieves a host by ID. The returned host is a deep copy.
func (r *Registry) GetHost(_ context.Context, id string) (*Host, error) {
	r.cacheMu.RLock()
	cached, ok := r.hostsByID[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrHostNotFound
}

// ListHosts retrieves all hosts sorted by id, with passwords scrubbed.
func (r *Registry) ListHosts(_ context.Context) ([]Host, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	hosts := make([]Host, 0, len(r.hostsByID))
	for _, h := range r.hostsByID {
		hosts = append(hosts, *h.Scrub())
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].ID < hosts[j].ID })
	return hosts, nil
}

// CreateHost validates, persists, and caches a new host.
func (r *Registry) CreateHost(ctx context.Context, host *Host) error {
	if host.ID == "" {
		host.ID = GenerateID()
	}
	if err := ValidateHost(host); err != nil {
		return err
	}

	if err := r.hosts.Create(ctx, host); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.hostsByID[host.ID] = host.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("host created", "id", host.ID, "addr", host.Addr)
	return nil
}

// UpdateHost validates, persists, and updates the cached host.
//
// An empty password on the update keeps the cached one, so editing a host
// does not wipe its runtime credential.
func (r *Registry) UpdateHost(ctx context.Context, host *Host) error {
	if err := ValidateHost(host); err != nil {
		return err
	}

	if err := r.hosts.Update(ctx, host); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if host.Password == "" {
		if prev, ok := r.hostsByID[host.ID]; ok {
			host.Password = prev.Password
		}
	}
	r.hostsByID[host.ID] = host.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("host updated", "id", host.ID)
	return nil
}

// DeleteHost removes a host and its commands (DB cascade) from persistence
// and cache.
func (r *Registry) DeleteHost(ctx context.Context, id string) error {
	if err := r.hosts.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.hostsByID, id)
	for cid, c := range r.cmdsByID {
		if c.HostID == id {
			delete(r.cmdsByID, cid)
		}
	}
	r.cacheMu.Unlock()

	r.logger.Info("host deleted", "id", id)
	return nil
}

// TouchHostUsed records host usage in persistence and cache.
// Failures are logged, not returned; usage stamps are advisory.
func (r *Registry) TouchHostUsed(ctx context.Context, id string) {
	if err := r.hosts.TouchUsed(ctx, id); err != nil {
		r.logger.Warn("touching host failed", "id", id, "error", err)
		return
	}
	// Cheap refresh of the cached stamp
	if h, err := r.hosts.GetByID(ctx, id); err == nil {
		r.cacheMu.Lock()
		if cached, ok := r.hostsByID[id]; ok {
			cached.LastUsedAt = h.LastUsedAt
		}
		r.cacheMu.Unlock()
	}
}

// GetCommand retrieves a command by ID. The returned command is a deep copy.
func (r *Registry) GetCommand(_ context.Context, id string) (*Command, error) {
	r.cacheMu.RLock()
	cached, ok := r.cmdsByID[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrCommandNotFound
}

// GetCommandByName retrieves a command by host and name.
func (r *Registry) GetCommandByName(_ context.Context, hostID, name string) (*Command, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, c := range r.cmdsByID {
		if c.HostID == hostID && c.Name == name {
			return c.DeepCopy(), nil
		}
	}
	return nil, ErrCommandNotFound
}

// ListCommands retrieves all commands sorted by host then name.
func (r *Registry) ListCommands(_ context.Context) ([]Command, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	cmds := make([]Command, 0, len(r.cmdsByID))
	for _, c := range r.cmdsByID {
		cmds = append(cmds, *c.DeepCopy())
	}
	sortCommands(cmds)
	return cmds, nil
}

// ListCommandsByHost retrieves all commands for a host, sorted by name.
func (r *Registry) ListCommandsByHost(_ context.Context, hostID string) ([]Command, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var cmds []Command
	for _, c := range r.cmdsByID {
		if c.HostID == hostID {
			cmds = append(cmds, *c.DeepCopy())
		}
	}
	sortCommands(cmds)
	return cmds, nil
}

func sortCommands(cmds []Command) {
	sort.Slice(cmds, func(i, j int) bool {
		if cmds[i].HostID != cmds[j].HostID {
			return cmds[i].HostID < cmds[j].HostID
		}
		return cmds[i].Name < cmds[j].Name
	})
}

// CreateCommand validates, persists, and caches a new command.
func (r *Registry) CreateCommand(ctx context.Context, cmd *Command) error {
	if cmd.ID == "" {
		cmd.ID = GenerateID()
	}
	if err := ValidateCommand(cmd); err != nil {
		return err
	}

	// The host must exist
	if _, err := r.GetHost(ctx, cmd.HostID); err != nil {
		return err
	}

	if err := r.commands.Create(ctx, cmd); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cmdsByID[cmd.ID] = cmd.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("command created", "id", cmd.ID, "host", cmd.HostID, "name", cmd.Name)
	return nil
}

// UpdateCommand validates, persists, and updates the cached command.
func (r *Registry) UpdateCommand(ctx context.Context, cmd *Command) error {
	if err := ValidateCommand(cmd); err != nil {
		return err
	}

	if err := r.commands.Update(ctx, cmd); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cmdsByID[cmd.ID] = cmd.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("command updated", "id", cmd.ID)
	return nil
}

// DeleteCommand removes a command from persistence and cache.
func (r *Registry) DeleteCommand(ctx context.Context, id string) error {
	if err := r.commands.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cmdsByID, id)
	r.cacheMu.Unlock()

	r.logger.Info("command deleted", "id", id)
	return nil
}

// TouchCommandExec records command execution in persistence and cache.
// Failures are logged, not returned.
func (r *Registry) TouchCommandExec(ctx context.Context, id string) {
	if err := r.commands.TouchExec(ctx, id); err != nil {
		r.logger.Warn("touching command failed", "id", id, "error", err)
		return
	}
	if c, err := r.commands.GetByID(ctx, id); err == nil {
		r.cacheMu.Lock()
		if cached, ok := r.cmdsByID[id]; ok {
			cached.LastExecAt = c.LastExecAt
		}
		r.cacheMu.Unlock()
	}
}

// HostCount returns the number of cached hosts.
func (r *Registry) HostCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.hostsByID)
}

// CommandCount returns the number of cached commands.
func (r *Registry) CommandCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cmdsByID)
}
