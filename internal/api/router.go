/**
 * @description
 * This file sets up the HTTP router for the impact-service. It defines the API
 * endpoints under /api/v1, associates them with their handlers, and applies the
 * rate-limit and authorization middleware per route group.
 *
 * @dependencies
 * - net/http, time: Standard Go libraries.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/enturk/impact-service/internal/app"
)

// RouterConfig carries the guard and limiter settings the route tree needs.
type RouterConfig struct {
	AdminAPIKey string
	ManagerAuth ManagerAuthConfig

	Limiter                 app.RateLimiter
	ProjectCreateLimit      int
	ProjectCreateWindow     time.Duration
	ApplicationCreateLimit  int
	ApplicationCreateWindow time.Duration
}

// Routes creates the service's route tree.
func Routes(h *ImpactHandlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Standard middleware for logging, panic recovery, and request deadlines.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	projectCreateLimit := RateLimitMiddleware(cfg.Limiter, "project_create", cfg.ProjectCreateLimit, cfg.ProjectCreateWindow)
	applicationLimit := RateLimitMiddleware(cfg.Limiter, "application_create", cfg.ApplicationCreateLimit, cfg.ApplicationCreateWindow)
	adminKey := AdminKeyMiddleware(cfg.AdminAPIKey)
	managerToken := ManagerAuthMiddleware(cfg.ManagerAuth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/contributions", h.RecordContributionHandler)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjectsHandler)
			r.With(projectCreateLimit, adminKey).Post("/", h.CreateAdminProjectHandler)
			r.With(projectCreateLimit).Post("/public", h.CreatePublicProjectHandler)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", h.GetProjectHandler)
				r.With(managerToken).Patch("/status", h.UpdateProjectStatusHandler)

				r.Route("/applications", func(r chi.Router) {
					r.With(applicationLimit).Post("/", h.CreateApplicationHandler)
					r.With(managerToken).Get("/", h.ListApplicationsHandler)
					r.With(managerToken).Patch("/{applicationID}/status", h.DecideApplicationHandler)
				})
			})
		})

		r.With(adminKey).Post("/volunteers", h.UpsertVolunteerHandler)
	})

	return r
}
