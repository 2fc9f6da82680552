package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the chi router with all routes configured. Rate limiting
// is applied globally: 120 requests per minute per IP. The static /popular
// and /nearby routes are registered alongside the {code} parameter route;
// chi gives static segments precedence.
func NewRouter(handlers *Handlers, db, geoRedis, popRedis pinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(httprate.LimitByIP(120, time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/v1/health", HealthHandlerFunc(db, geoRedis, popRedis, log))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/airports", func(r chi.Router) {
		r.Get("/", handlers.ListAirports)
		r.Post("/", handlers.CreateAirport)
		r.Get("/popular", handlers.PopularAirports)
		r.Get("/nearby", handlers.NearbyAirports)
		r.Get("/{code}", handlers.GetAirport)
		r.Put("/{code}", handlers.UpdateAirport)
		r.Delete("/{code}", handlers.DeleteAirport)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
