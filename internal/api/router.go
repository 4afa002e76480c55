// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trailmark-dev/trailmark/internal/config"
)

// Router assembles the HTTP surface.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter wires the router from config and the handler set.
func NewRouter(cfg config.ServerConfig, h *Handler) *Router {
	return &Router{
		handler:    h,
		middleware: NewMiddleware(cfg.CORSOrigins, cfg.RateLimitReqs, cfg.RateLimitWindow),
	}
}

// Setup builds the chi route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.middleware.CORS())
	r.Use(RequestLogging())

	r.Get("/health", rt.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rt.middleware.RateLimit())
		r.Use(PrometheusMetrics())

		r.Route("/gpx", func(r chi.Router) {
			r.Post("/", rt.handler.Upload)
			r.Get("/upload-counts", rt.handler.UploadCounts)
			r.Get("/fetch", rt.handler.FetchGPX)
		})

		r.Get("/routes", rt.handler.Routes)

		// Syncs fan out into partner API calls; keep them on a tighter
		// limiter than the rest of the API.
		r.With(rt.middleware.RateLimitSync()).Post("/strava/sync", rt.handler.StravaSync)

		r.Post("/check-in", rt.handler.CheckIn)
		r.Get("/check-ins", rt.handler.CheckIns)
		r.Delete("/check-ins/{id}", rt.handler.DeleteCheckIn)

		r.Post("/flags", rt.handler.Flag)

		r.Get("/accomplishments", rt.handler.Accomplishments)
		r.Delete("/accomplishments/{id}", rt.handler.DeleteAccomplishment)

		r.Get("/user", rt.handler.User)
	})

	return r
}
