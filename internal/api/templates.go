package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tmarsden/edgeflow-core/internal/action"
)

// decodeJSON decodes a request body into v, rejecting unknown fields so
// typoed payload keys fail loudly instead of silently dropping data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// handleListTemplates returns all stored templates sorted by name.
func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	templates := s.templates.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

// handleCreateTemplate stores a new template. An empty id is assigned.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl action.Template
	if err := decodeJSON(r, &tpl); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	created, err := s.templates.Add(r.Context(), tpl)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetTemplate returns a single template by id.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// handleUpdateTemplate replaces a template's definition. Usage counters
// and the creation time survive the update.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl action.Template
	if err := decodeJSON(r, &tpl); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	tpl.ID = chi.URLParam(r, "id")

	updated, err := s.templates.Update(r.Context(), tpl)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteTemplate removes a template and its exports.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecuteTemplate runs a template through the engine and returns
// the execution record.
func (s *Server) handleExecuteTemplate(w http.ResponseWriter, r *http.Request) {
	res, err := s.templates.Execute(r.Context(), chi.URLParam(r, "id"))
	writeExecutionResult(w, res, err)
}
