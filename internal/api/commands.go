package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Command endpoints expose the persistent command catalog read-only.
// Commands are provisioned through configuration tooling; the API only
// inspects them and runs them via remote_command_ref actions.

// handleListCommands returns every catalog command.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeDisabled, "command catalog not configured")
		return
	}
	commands, err := s.catalog.ListCommands(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": commands,
		"count":    len(commands),
	})
}

// handleGetCommand returns a single catalog command by id.
func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeDisabled, "command catalog not configured")
		return
	}
	cmd, err := s.catalog.GetCommand(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}
