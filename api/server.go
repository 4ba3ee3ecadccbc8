/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*           User management, balances, projections
  /api/leave-requests/*  Filing, deduction, restoration
  /api/attendance        Shift record ingestion
  /api/admin/*           Batch triggers, cash conversion, reset
  /api/scenarios/*       Demo scenarios
  /health                Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.UpdateUser)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/summary", h.GetSummary)
			r.Get("/{id}/projection", h.GetProjection)
			r.Get("/{id}/ledger", h.GetLedger)
			r.Get("/{id}/carryovers", h.ListUserCarryovers)
			r.Get("/{id}/requests", h.ListUserRequests)
			r.Post("/{id}/validate", h.ValidateRequest)
		})

		// Leave request routes
		r.Route("/leave-requests", func(r chi.Router) {
			r.Post("/", h.CreateLeaveRequest)
			r.Get("/{id}", h.GetLeaveRequest)
			r.Post("/{id}/deduct", h.DeductLeaveRequest)
			r.Post("/{id}/restore", h.RestoreLeaveRequest)
			r.Post("/{id}/restore-partial", h.RestorePartialLeaveRequest)
		})

		// Attendance ingestion
		r.Post("/attendance", h.RecordAttendance)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/accruals/run", h.RunAccruals)
			r.Post("/carryovers/run", h.RunCarryovers)
			r.Post("/carryovers/convert", h.ConvertCash)
			r.Post("/reset", h.ResetDatabase)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Minimal landing page pointing at the API
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Leave Credit Ledger</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Leave Credit Ledger API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/users">/api/users</a> - List users</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List demo scenarios</li>
<li><a href="/health">/health</a> - Liveness probe</li>
</ul>
</body>
</html>`))
	})

	return r
}
