package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tmarsden/edgeflow-core/internal/action"
)

// variableView is the wire form of a stored variable. Values render the
// same way placeholder expansion inserts them.
type variableView struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// handleListVariables returns the variable store contents sorted by name.
func (s *Server) handleListVariables(w http.ResponseWriter, _ *http.Request) {
	if s.variables == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeDisabled, "variable store not configured")
		return
	}

	named := s.variables.List()
	views := make([]variableView, 0, len(named))
	for _, nv := range named {
		views = append(views, variableView{
			Name:  nv.Name,
			Type:  nv.Value.Kind.String(),
			Value: nv.Value.Format(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"variables": views,
		"count":     len(views),
	})
}

// setVariableRequest carries the typed value for a variable write.
type setVariableRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// handleSetVariable writes a variable through the engine, so API writes
// queue behind running automations like any other set_variable action.
func (s *Server) handleSetVariable(w http.ResponseWriter, r *http.Request) {
	var req setVariableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := s.engine.ExecuteSync(action.Action{
		Kind: action.KindSetVariable,
		SetVar: &action.SetVariable{
			Name:  chi.URLParam(r, "name"),
			Type:  req.Type,
			Value: req.Value,
		},
	})
	writeExecutionResult(w, res, err)
}
