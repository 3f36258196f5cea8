package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/web/handlers"
	"github.com/kozaktomas/facegate/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	identitiesHandler := handlers.NewIdentitiesHandler(s.svc, s.logger)
	verifyHandler := handlers.NewVerifyHandler(s.svc, s.logger)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAPIToken(s.config.APIToken))

		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities", identitiesHandler.Create)
		r.Delete("/identities/{id}", identitiesHandler.Delete)

		// Verification
		r.Post("/verify", verifyHandler.Verify)
		r.Post("/nearest", verifyHandler.Nearest)
	})
}
