package api

import (
	"errors"
	"net/http"

	"github.com/tmarsden/edgeflow-core/internal/action"
)

// writeExecutionResult renders the outcome of an execution request.
// Outcomes the engine produced (success, failed, timeout) are returned
// as result records; errors raised before execution (bad payload, full
// queue, unknown template) become HTTP errors.
func writeExecutionResult(w http.ResponseWriter, res action.Result, err error) {
	switch {
	case err == nil:
		status := http.StatusOK
		if res.Status == action.StatusQueued {
			status = http.StatusAccepted
		}
		writeJSON(w, status, res)
	case errors.Is(err, action.ErrExecutionFailed),
		errors.Is(err, action.ErrExecutionTimeout):
		writeJSON(w, http.StatusOK, res)
	default:
		writeDomainError(w, err)
	}
}

// handleExecuteAction runs an ad hoc action. The Async flag on the
// payload selects fire-and-forget admission over a synchronous wait.
func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	var act action.Action
	if err := decodeJSON(r, &act); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if act.Async {
		if err := s.engine.EnqueueAsync(act, nil); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": action.StatusQueued,
		})
		return
	}

	res, err := s.engine.ExecuteSync(act)
	writeExecutionResult(w, res, err)
}

// handleActionStats returns the engine-wide execution counters.
func (s *Server) handleActionStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// handleResetActionStats zeroes the execution counters.
func (s *Server) handleResetActionStats(w http.ResponseWriter, _ *http.Request) {
	s.engine.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

// handleQueueStatus reports the current queue depth and high-water mark.
func (s *Server) handleQueueStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"depth":      s.engine.QueueDepth(),
		"high_water": s.engine.Stats().QueueHighWater,
	})
}

// handleCancelQueue drops every queued-but-not-started action. The
// in-flight action, if any, runs to completion.
func (s *Server) handleCancelQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": s.engine.CancelAll(),
	})
}
