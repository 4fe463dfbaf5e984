// Package main: HTTP route registration.
//
// initRoutes builds the chi router. Every /api route except health sits behind
// the bearer auth middleware; membership edits additionally require the admin
// role. /ws authenticates itself because browsers cannot send headers on the
// WebSocket handshake.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/config"
	"github.com/akinalp/gatherly/middleware"
	"github.com/akinalp/gatherly/services"
)

func initRoutes(h *Handlers, authService services.AuthService, cfg *config.Config, httpLog zerolog.Logger) http.Handler {
	authMw := middleware.NewAuthMiddleware(authService)
	adminMw := middleware.NewAdminMiddleware()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(httpLog))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/api/health", h.Health.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WS.HandleConnection)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMw.Require)

		r.Get("/unread", h.ReadState.GetUnreadCounts)

		r.Route("/rooms/{roomId}", func(r chi.Router) {
			r.Get("/messages", h.Message.List)
			r.Post("/messages", h.Message.Create)
			r.Get("/pins", h.Pin.ListGlobal)
			r.Get("/pins/personal", h.Pin.ListPersonal)
			r.Post("/read", h.ReadState.MarkRead)

			r.With(adminMw.Require).Put("/members/{userId}", h.Member.Put)
			r.With(adminMw.Require).Delete("/members/{userId}", h.Member.Delete)
		})

		r.Route("/messages/{id}", func(r chi.Router) {
			r.Post("/pin-global", h.Pin.PinGlobal)
			r.Delete("/pin-global", h.Pin.UnpinGlobal)
			r.Post("/pin-personal", h.Pin.TogglePersonal)
		})
	})

	return r
}
