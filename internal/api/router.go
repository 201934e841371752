package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Template endpoints
			r.Route("/templates", func(r chi.Router) {
				r.Get("/", s.handleListTemplates)
				r.Post("/", s.handleCreateTemplate)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetTemplate)
					r.Put("/", s.handleUpdateTemplate)
					r.Delete("/", s.handleDeleteTemplate)
					r.Post("/execute", s.handleExecuteTemplate)
				})
			})

			// Ad hoc execution and engine introspection
			r.Route("/actions", func(r chi.Router) {
				r.Post("/execute", s.handleExecuteAction)
				r.Get("/stats", s.handleActionStats)
				r.Post("/stats/reset", s.handleResetActionStats)
				r.Get("/queue", s.handleQueueStatus)
				r.Delete("/queue", s.handleCancelQueue)
			})

			// Runtime host table (catalog hosts remain read-only)
			r.Route("/hosts", func(r chi.Router) {
				r.Get("/", s.handleListHosts)
				r.Post("/", s.handleRegisterHost)
				r.Delete("/{id}", s.handleUnregisterHost)
			})

			// Command catalog (read-only)
			r.Route("/commands", func(r chi.Router) {
				r.Get("/", s.handleListCommands)
				r.Get("/{id}", s.handleGetCommand)
			})

			// Service watch endpoints
			r.Route("/watches", func(r chi.Router) {
				r.Get("/", s.handleListWatches)
				r.Delete("/{name}", s.handleStopWatch)
			})

			// Variable store endpoints
			r.Route("/variables", func(r chi.Router) {
				r.Get("/", s.handleListVariables)
				r.Put("/{name}", s.handleSetVariable)
			})

			// WebSocket (auth via token query param, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
