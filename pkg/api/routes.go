package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.metrics.middleware)
	r.Use(s.corsMiddleware())

	r.Get("/metrics", s.metrics.handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if s.cfg.API.Auth.Basic.Enabled {
				r.Use(s.basicAuth(newBasicAuthUsers(s.cfg.API.Auth.Basic.Users)))
			}

			if s.cfg.API.Server.RateLimit.Enabled {
				r.Use(s.rateLimitMiddleware(
					s.cfg.API.Server.RateLimit.RequestsPerMinute,
				))
			}

			r.Get("/data", s.handleData)
			r.Get("/suites", s.handleSuites)

			r.Route("/suites/{suite}", func(r chi.Router) {
				r.Get("/benches", s.handleBenches)
				r.Get("/series", s.handleSeries)

				// Alerts are only recorded when indexing is enabled.
				if s.indexStore != nil {
					r.Get("/alerts", s.handleAlerts)
				}
			})
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the API config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.API.Server.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
