package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tmarsden/edgeflow-core/internal/catalog"
	"github.com/tmarsden/edgeflow-core/internal/remote"
)

// Host endpoints operate on the engine's runtime host table. Hosts
// provisioned through the persistent catalog remain read-only here;
// the engine falls back to them on lookup misses.

// handleListHosts returns the runtime host table, passwords scrubbed.
func (s *Server) handleListHosts(w http.ResponseWriter, _ *http.Request) {
	hosts := s.engine.Hosts()
	writeJSON(w, http.StatusOK, map[string]any{
		"hosts": hosts,
		"count": len(hosts),
	})
}

// registerHostRequest carries the credentials the scrubbed Host type
// refuses to serialise.
type registerHostRequest struct {
	ID       string  `json:"id"`
	Addr     string  `json:"addr"`
	Port     int     `json:"port"`
	Username string  `json:"username"`
	AuthType string  `json:"auth_type"`
	Password string  `json:"password,omitempty"`
	KeyID    *string `json:"key_id,omitempty"`
}

// handleRegisterHost adds or replaces a host in the runtime table.
func (s *Server) handleRegisterHost(w http.ResponseWriter, r *http.Request) {
	var req registerHostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	host := catalog.Host{
		ID:       req.ID,
		Addr:     req.Addr,
		Port:     req.Port,
		Username: req.Username,
		AuthType: remote.AuthType(req.AuthType),
		Password: req.Password,
		KeyID:    req.KeyID,
		Enabled:  true,
	}
	if err := s.engine.RegisterHost(host); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, host.Scrub())
}

// handleUnregisterHost removes a host from the runtime table.
func (s *Server) handleUnregisterHost(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.UnregisterHost(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
