package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-cluster/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	configHandler := handlers.NewConfigHandler(s.config)
	clusterHandler := handlers.NewClusterHandler(s.config, s.identifier)
	jobHandler := handlers.NewClusterJobHandler(clusterHandler, s.jobManager)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)
		r.Post("/cluster", clusterHandler.Cluster)

		r.Route("/cluster/jobs", func(r chi.Router) {
			r.Get("/", jobHandler.List)
			r.Post("/", jobHandler.Start)
			r.Get("/{jobId}", jobHandler.Status)
			r.Get("/{jobId}/events", jobHandler.Events)
			r.Delete("/{jobId}", jobHandler.Cancel)
		})
	})
}
