// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package api

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/metrics"
)

// Middleware builds the router's middleware stack from configuration.
type Middleware struct {
	corsHandler func(http.Handler) http.Handler
	rateReqs    int
	rateWindow  time.Duration
}

// NewMiddleware constructs the middleware factory.
func NewMiddleware(corsOrigins []string, rateLimitReqs int, rateLimitWindow time.Duration) *Middleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-User-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &Middleware{
		corsHandler: corsHandler,
		rateReqs:    rateLimitReqs,
		rateWindow:  rateLimitWindow,
	}
}

// CORS returns the configured go-chi/cors handler.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.corsHandler
}

// RateLimit returns the default per-IP limiter.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return httprate.LimitByIP(m.rateReqs, m.rateWindow)
}

// RateLimitSync is stricter: syncs fan out into many partner API calls.
func (m *Middleware) RateLimitSync() func(http.Handler) http.Handler {
	return httprate.Limit(5, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
}

// RequestIDWithLogging assigns each request an id and threads it through
// the logging context, honoring an inbound X-Request-ID.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogging emits one structured log line per request.
func RequestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logging.Ctx(r.Context()).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(started)).
				Msg("request")
		})
	}
}

// PrometheusMetrics records per-request counters and latency.
func PrometheusMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			metrics.RecordAPIRequest(r.Method, r.URL.Path,
				strconv.Itoa(ww.Status()), time.Since(started))
		})
	}
}
