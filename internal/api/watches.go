package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListWatches returns the currently running service watches.
func (s *Server) handleListWatches(w http.ResponseWriter, _ *http.Request) {
	if s.watches == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeDisabled, "service watches not configured")
		return
	}
	watches := s.watches.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"watches": watches,
		"count":   len(watches),
	})
}

// handleStopWatch stops a running watch by its variable name.
func (s *Server) handleStopWatch(w http.ResponseWriter, r *http.Request) {
	if s.watches == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeDisabled, "service watches not configured")
		return
	}
	if err := s.watches.Stop(chi.URLParam(r, "name")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
