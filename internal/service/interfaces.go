package service

import (
	"context"

	"github.com/aeronav/airports/internal/airport"
)

// RecordStore defines the authoritative-store operations the service needs.
type RecordStore interface {
	GetByCode(ctx context.Context, code string) (*airport.Airport, error)
	GetByCodes(ctx context.Context, codes []string) ([]*airport.Airport, error)
	List(ctx context.Context, limit int) ([]*airport.Airport, error)
	Insert(ctx context.Context, a *airport.Airport) (*airport.Airport, error)
	Update(ctx context.Context, code string, p airport.Patch) (*airport.Airport, error)
	Delete(ctx context.Context, code string) (bool, error)
}

// GeoIndex defines the spatial-index operations the service needs.
type GeoIndex interface {
	Add(ctx context.Context, code string, lat, lng float64) error
	Remove(ctx context.Context, code string) error
	Search(ctx context.Context, lat, lng, radiusKm float64) ([]string, error)
}

// PopularityIndex defines the ranking operations the service needs.
type PopularityIndex interface {
	Increment(ctx context.Context, code string) (float64, error)
	Remove(ctx context.Context, code string) error
	Top(ctx context.Context, limit int) ([]airport.PopularAirport, error)
}
