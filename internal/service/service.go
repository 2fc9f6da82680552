// Package service implements the airport mutation and query operations over
// the authoritative record store and the two derived indexes. Cross-store
// sequences are not transactional: the record store write always happens
// before the index write, and an index failure after a successful store write
// surfaces as *airport.PartialIndexError rather than rolling anything back.
package service

import (
	"context"
	"log/slog"

	"github.com/aeronav/airports/internal/airport"
)

const defaultPopularLimit = 10

// Service coordinates the record store and the derived indexes.
type Service struct {
	store RecordStore
	geo   GeoIndex
	pop   PopularityIndex
	log   *slog.Logger
}

// New constructs a Service with injected store and index accessors.
func New(store RecordStore, geo GeoIndex, pop PopularityIndex, log *slog.Logger) *Service {
	return &Service{store: store, geo: geo, pop: pop, log: log}
}

// Create stores a new airport and, when it carries coordinates, indexes it
// spatially under its canonical code. Returns airport.ErrNoCode when no
// canonical code can be derived. A geo-index failure after the store insert
// returns the stored record together with a *airport.PartialIndexError.
func (s *Service) Create(ctx context.Context, a *airport.Airport) (*airport.Airport, error) {
	code, err := a.Code()
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Insert(ctx, a)
	if err != nil {
		return nil, err
	}

	if stored.HasCoordinates() {
		if err := s.geo.Add(ctx, code, *stored.Latitude, *stored.Longitude); err != nil {
			return stored, &airport.PartialIndexError{Op: "geo add", Code: code, Err: err}
		}
	}

	return stored, nil
}

// GetByCode returns the airport matching the given IATA or ICAO code, or
// airport.ErrNotFound. The lookup is side-effect-free; callers that want the
// visit counted compose it with RecordVisit.
func (s *Service) GetByCode(ctx context.Context, code string) (*airport.Airport, error) {
	a, err := s.store.GetByCode(ctx, airport.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, airport.ErrNotFound
	}
	return a, nil
}

// RecordVisit counts one visit for code in the popularity ranking and resets
// the ranking's shared TTL. Returns the new score.
func (s *Service) RecordVisit(ctx context.Context, code string) (float64, error) {
	return s.pop.Increment(ctx, airport.NormalizeCode(code))
}

// Update applies the patch to the record matching code. When the patch moves
// the airport (both coordinates present) the geo entry is re-upserted under
// the record's canonical code, which the patch cannot change. Returns
// airport.ErrNotFound when no record matches.
func (s *Service) Update(ctx context.Context, code string, p airport.Patch) (*airport.Airport, error) {
	updated, err := s.store.Update(ctx, airport.NormalizeCode(code), p)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, airport.ErrNotFound
	}

	if p.HasCoordinates() {
		canonical, err := updated.Code()
		if err != nil {
			return updated, nil
		}
		if err := s.geo.Add(ctx, canonical, *p.Latitude, *p.Longitude); err != nil {
			return updated, &airport.PartialIndexError{Op: "geo upsert", Code: canonical, Err: err}
		}
	}

	return updated, nil
}

// Delete removes the record matching code and cascades the removal to both
// indexes. Codes absent from an index are removed without error. Returns
// airport.ErrNotFound when no record matches; an index-removal failure after
// the store delete surfaces as *airport.PartialIndexError.
func (s *Service) Delete(ctx context.Context, code string) error {
	normalized := airport.NormalizeCode(code)

	matched, err := s.store.Delete(ctx, normalized)
	if err != nil {
		return err
	}
	if !matched {
		return airport.ErrNotFound
	}

	if err := s.geo.Remove(ctx, normalized); err != nil {
		return &airport.PartialIndexError{Op: "geo remove", Code: normalized, Err: err}
	}
	if err := s.pop.Remove(ctx, normalized); err != nil {
		return &airport.PartialIndexError{Op: "popularity remove", Code: normalized, Err: err}
	}

	return nil
}

// Nearby returns the stored airports within radiusKm kilometers of (lat, lng).
// An empty index result returns immediately without touching the record store.
// The index and the store are not guaranteed to agree 1:1 after a partial
// failure; whatever records match is what gets returned.
func (s *Service) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]*airport.Airport, error) {
	codes, err := s.geo.Search(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return []*airport.Airport{}, nil
	}

	airports, err := s.store.GetByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	if airports == nil {
		airports = []*airport.Airport{}
	}
	return airports, nil
}

// Popular returns up to limit (code, score) pairs ordered by score descending.
// A non-positive limit falls back to 10. Never fails on an empty ranking.
func (s *Service) Popular(ctx context.Context, limit int) ([]airport.PopularAirport, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	return s.pop.Top(ctx, limit)
}

// List returns up to limit airports from the record store.
func (s *Service) List(ctx context.Context, limit int) ([]*airport.Airport, error) {
	airports, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if airports == nil {
		airports = []*airport.Airport{}
	}
	return airports, nil
}
