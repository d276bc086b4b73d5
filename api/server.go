/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  Then, under /api: RequireAuth for everything, with RequireRole and
  RateLimit applied per route group. The statistics read path runs the full
  authenticate -> authorize -> rate-check chain in that order.

ROUTE GROUPS:
  /api/statistics/*     Statistics snapshot (admin/hr, rate limited)
  /api/admin/*          Manual refresh (admin)
  /api/employees/*      Employee management (admin/hr)
  /api/leave-types/*    Leave type management (admin/hr)
  /api/requests/*       Leave requests (any authenticated role)

SEE ALSO:
  - middleware.go: auth/role/rate-limit stages
  - handlers.go: CRUD handler implementations
  - stats.go: Statistics handlers
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/leave-engine/auth"
)

// RouterConfig carries the router's tunables.
type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, sh *StatsHandler, verifier auth.Verifier, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(verifier))

		// Statistics routes
		r.Route("/statistics", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAdmin, auth.RoleHR))
			r.With(RateLimit(cfg.RateLimit, cfg.RateWindow)).Get("/", sh.GetStatistics)
			r.Get("/updates", sh.AwaitUpdate)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAdmin))
			r.Post("/statistics/refresh", sh.ManualRefresh)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAdmin, auth.RoleHR))
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Post("/deactivate", h.DeactivateEmployees)
			r.Get("/{id}", h.GetEmployee)
			r.Put("/{id}", h.UpdateEmployee)
			r.Delete("/{id}", h.DeleteEmployee)
		})

		// Leave type routes
		r.Route("/leave-types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.With(RequireRole(auth.RoleAdmin, auth.RoleHR)).Post("/", h.CreateLeaveType)
			r.With(RequireRole(auth.RoleAdmin, auth.RoleHR)).Delete("/{id}", h.DeleteLeaveType)
		})

		// Leave request routes
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListLeaveRequests)
			r.Post("/", h.SubmitLeaveRequest)
			r.Get("/{id}", h.GetLeaveRequest)
			r.With(RequireRole(auth.RoleAdmin, auth.RoleHR, auth.RoleManager)).
				Post("/{id}/approve", h.ApproveLeaveRequest)
			r.With(RequireRole(auth.RoleAdmin, auth.RoleHR, auth.RoleManager)).
				Post("/{id}/reject", h.RejectLeaveRequest)
			r.Post("/{id}/cancel", h.CancelLeaveRequest)
		})
	})

	return r
}
