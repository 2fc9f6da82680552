package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aeronav/airports/internal/airport"
	"github.com/aeronav/airports/internal/metrics"
)

const (
	defaultListLimit  = 500
	defaultRadiusKm   = 100.0
	defaultPopularTop = 10
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	svc     AirportService
	metrics *metrics.Registry
	log     *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(svc AirportService, m *metrics.Registry, log *slog.Logger) *Handlers {
	return &Handlers{svc: svc, metrics: m, log: log}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the structured failure body every endpoint returns on error.
type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, apiError{Error: msg, Kind: kind})
}

// writeServiceError maps the core's error taxonomy onto HTTP statuses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var partial *airport.PartialIndexError
	switch {
	case errors.Is(err, airport.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "airport not found")
	case errors.Is(err, airport.ErrNoCode):
		writeError(w, http.StatusBadRequest, "validation_failed", "record needs a usable iata_code or icao_code")
	case errors.Is(err, airport.ErrMissingCoordinates):
		writeError(w, http.StatusBadRequest, "invalid_input", "lat and lng are required")
	case errors.As(err, &partial):
		h.log.Error("partial index failure", "op", partial.Op, "code", partial.Code, "err", partial.Err)
		writeError(w, http.StatusInternalServerError, "partial_index_failure",
			"record stored but index update failed; consistent again after the next reconciliation")
	default:
		h.log.Error("operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// ListAirports handles GET /airports.
func (h *Handlers) ListAirports(w http.ResponseWriter, r *http.Request) {
	airports, err := h.svc.List(r.Context(), defaultListLimit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, airports)
}

// PopularAirports handles GET /airports/popular.
func (h *Handlers) PopularAirports(w http.ResponseWriter, r *http.Request) {
	limit := defaultPopularTop
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := h.svc.Popular(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// NearbyAirports handles GET /airports/nearby?lat=..&lng=..&radius=..
func (h *Handlers) NearbyAirports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "lat and lng are required numeric parameters")
		return
	}

	radius := defaultRadiusKm
	if raw := q.Get("radius"); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 {
			radius = f
		}
	}

	h.metrics.GeoSearches.Inc()

	airports, err := h.svc.Nearby(r.Context(), lat, lng, radius)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": airports})
}

// GetAirport handles GET /airports/{code}. The detail lookup and the visit
// count are composed here: the lookup itself is side-effect-free, and the
// visit is recorded best-effort once the lookup succeeds.
func (h *Handlers) GetAirport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	a, err := h.svc.GetByCode(r.Context(), code)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if _, err := h.svc.RecordVisit(r.Context(), code); err != nil {
		h.log.Warn("recording visit failed", "code", code, "err", err)
	} else {
		h.metrics.VisitsRecorded.Inc()
	}

	writeJSON(w, http.StatusOK, a)
}

// CreateAirport handles POST /airports.
func (h *Handlers) CreateAirport(w http.ResponseWriter, r *http.Request) {
	var a airport.Airport
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	stored, err := h.svc.Create(r.Context(), &a)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// UpdateAirport handles PUT /airports/{code}.
func (h *Handlers) UpdateAirport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var p airport.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	updated, err := h.svc.Update(r.Context(), code, p)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAirport handles DELETE /airports/{code}.
func (h *Handlers) DeleteAirport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.svc.Delete(r.Context(), code); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// HealthCheck pings both backends; 200 when all reachable, 503 otherwise.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and the two
// redis index backends.
func HealthHandlerFunc(db, geoRedis, popRedis pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{"db": "ok", "redis_geo": "ok", "redis_pop": "ok"}

		for name, p := range map[string]pinger{"db": db, "redis_geo": geoRedis, "redis_pop": popRedis} {
			if err := p.Ping(ctx); err != nil {
				log.Error("health check ping failed", "target", name, "err", err)
				checks[name] = "error"
				status = http.StatusServiceUnavailable
			}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		checks["status"] = overall

		writeJSON(w, status, checks)
	}
}
