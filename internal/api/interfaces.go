package api

import (
	"context"

	"github.com/aeronav/airports/internal/airport"
)

// AirportService defines the core operations needed by the HTTP handlers.
type AirportService interface {
	Create(ctx context.Context, a *airport.Airport) (*airport.Airport, error)
	GetByCode(ctx context.Context, code string) (*airport.Airport, error)
	RecordVisit(ctx context.Context, code string) (float64, error)
	Update(ctx context.Context, code string, p airport.Patch) (*airport.Airport, error)
	Delete(ctx context.Context, code string) error
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]*airport.Airport, error)
	Popular(ctx context.Context, limit int) ([]airport.PopularAirport, error)
	List(ctx context.Context, limit int) ([]*airport.Airport, error)
}
