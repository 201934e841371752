package action

import (
	"context"
	"fmt"
	"sort"

	"github.com/tmarsden/edgeflow-core/internal/catalog"
	"github.com/tmarsden/edgeflow-core/internal/remote"
)

// The engine keeps its own small host table so automations can run
// against hosts registered at runtime (through the API or config)
// without touching the persistent catalog. Lookups fall back to the
// catalog when the local table misses.

// RegisterHost adds or replaces a host in the local table.
func (e *Engine) RegisterHost(host catalog.Host) error {
	if err := catalog.ValidateHost(&host); err != nil {
		return err
	}
	e.hostsMu.Lock()
	e.hosts[host.ID] = host.DeepCopy()
	e.hostsMu.Unlock()

	e.deps.Logger.Info("host registered", "host_id", host.ID, "addr", host.Addr)
	return nil
}

// UnregisterHost removes a host from the local table.
func (e *Engine) UnregisterHost(id string) error {
	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()
	if _, ok := e.hosts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrHostNotFound, id)
	}
	delete(e.hosts, id)
	return nil
}

// Hosts lists the local table with passwords scrubbed, sorted by id.
func (e *Engine) Hosts() []catalog.Host {
	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	out := make([]catalog.Host, 0, len(e.hosts))
	for _, h := range e.hosts {
		out = append(out, *h.Scrub())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// resolveHost looks up a host in the local table, then the catalog.
func (e *Engine) resolveHost(ctx context.Context, id string) (*catalog.Host, error) {
	e.hostsMu.Lock()
	h, ok := e.hosts[id]
	e.hostsMu.Unlock()
	if ok {
		return h.DeepCopy(), nil
	}

	if e.deps.Catalog != nil {
		host, err := e.deps.Catalog.GetHost(ctx, id)
		if err == nil {
			return host, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrHostNotFound, id)
}

// hostConfig turns a catalog host into connection parameters, loading
// key material from the keystore for key auth. The key id doubles as a
// filesystem path when the keystore misses.
func (e *Engine) hostConfig(host *catalog.Host) (remote.HostConfig, error) {
	cfg := remote.HostConfig{
		Addr:     host.Addr,
		Port:     host.Port,
		Username: host.Username,
		AuthType: host.AuthType,
		Password: host.Password,
	}

	if host.AuthType == remote.AuthKey {
		if host.KeyID == nil || *host.KeyID == "" {
			return remote.HostConfig{}, fmt.Errorf("%w: host %s has key auth but no key id", ErrInvalidAction, host.ID)
		}
		if e.deps.Keystore == nil {
			return remote.HostConfig{}, fmt.Errorf("%w: no keystore configured", ErrInvalidAction)
		}
		key, err := e.deps.Keystore.LoadPrivateKey(*host.KeyID)
		if err != nil {
			return remote.HostConfig{}, fmt.Errorf("action: load key %q: %w", *host.KeyID, err)
		}
		cfg.PrivateKey = key
	}
	return cfg, nil
}

// HostConfig resolves a host id straight to connection parameters. This
// is the contract the watch manager consumes for its remote log checks.
func (e *Engine) HostConfig(id string) (remote.HostConfig, error) {
	host, err := e.resolveHost(context.Background(), id)
	if err != nil {
		return remote.HostConfig{}, err
	}
	return e.hostConfig(host)
}
