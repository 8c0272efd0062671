package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/pinalbum/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	locationsHandler := handlers.NewLocationsHandler(s.svc)
	albumsHandler := handlers.NewAlbumsHandler(s.svc)
	itemsHandler := handlers.NewItemsHandler(s.svc)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Event streams run without the request timeout.
		r.With(s.closeOnShutdown).Get("/albums/{id}/events", albumsHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(time.Minute))

			r.Get("/config", configHandler.Get)

			// Locations
			r.Get("/locations", locationsHandler.List)
			r.Post("/locations", locationsHandler.Create)
			r.Get("/locations/{id}", locationsHandler.Get)
			r.Delete("/locations/{id}", locationsHandler.Delete)

			// Albums
			r.Get("/albums/{id}", albumsHandler.Get)
			r.Post("/albums/{id}/sync", albumsHandler.Sync)
			r.Post("/albums/{id}/reload", albumsHandler.Reload)
			r.Delete("/albums/{id}/items", albumsHandler.DeleteItems)

			// Items
			r.Get("/items/{id}/payload", itemsHandler.Payload)
			r.Get("/items/{id}/thumbnail", itemsHandler.Thumbnail)
		})
	})
}
