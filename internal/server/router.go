// Package server wires handlers into the chi router and runs it under a supervisor.
package server

import (
	"net/http"
	"time"

	"songrec/internal/coverart"
	"songrec/internal/handler"
	"songrec/internal/middleware"
	"songrec/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the router needs; all of it is built once in main.
type Deps struct {
	Recommend   *service.RecommendService
	Songs       *service.SongService
	Sessions    *coverart.Sessions
	CoversLive  bool
	IndexMetric string

	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	SessionTTL        time.Duration
}

func NewRouter(d Deps) http.Handler {
	recH := handler.NewRecommendHandler(d.Recommend, d.CORSOrigins)
	songH := handler.NewSongHandler(d.Songs)
	pageH := handler.NewPageHandler(d.Songs, d.Recommend, d.CoversLive)
	healthH := handler.NewHealthHandler(d.Songs.Count, d.CoversLive, d.IndexMetric)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Prometheus)

	// =============
	// Operational
	// =============
	r.Get("/health", healthH.Health)
	r.Handle("/metrics", promhttp.Handler())

	// =============
	// UI and API
	// =============
	r.Group(func(r chi.Router) {
		if len(d.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   d.CORSOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
				ExposedHeaders:   []string{middleware.RequestIDHeader},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		if d.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(d.RateLimitRequests, d.RateLimitWindow))
		}
		r.Use(handler.Sessions(d.Sessions, d.SessionTTL))

		r.Get("/", pageH.Index)
		r.Get("/api/songs", songH.Search)
		r.Get("/api/recommendations", recH.GetRecommendations)
		r.Get("/ws/recommendations", recH.GetRecommendationsWS)
	})

	return r
}
