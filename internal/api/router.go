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
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Battery level for the door sensor (read-only, no auth required)
		r.Get("/battery", s.handleBattery)

		// Gate endpoint. The session cookie scopes the per-session
		// failure counters, so it is issued here rather than globally.
		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Post("/door/open", s.handleOpenDoor)
		})

		// Admin auth (no auth required)
		r.Post("/admin/login", s.handleAdminLogin)

		// Protected admin routes
		r.Group(func(r chi.Router) {
			r.Use(s.adminAuthMiddleware)

			// WS ticket requires authentication - admin must be logged in
			// to request a ticket
			r.Post("/admin/ws-ticket", s.handleWSTicket)

			r.Get("/admin/logs", s.handleLogs)

			r.Route("/admin/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Patch("/{username}", s.handleUpdateUser)
				r.Delete("/{username}", s.handleDeleteUser)
			})
		})

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)
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
