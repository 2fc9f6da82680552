// Package index provides the two derived Redis structures kept alongside the
// authoritative airport store: a GEO set for radius search and a sorted-set
// popularity ranking. Both are rebuildable and best-effort; the record store
// stays the source of truth.
package index

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const geoKey = "airports:geo"

// GeoIndex maps canonical airport codes to coordinates in a Redis GEO set.
type GeoIndex struct {
	client *redis.Client
	key    string
}

// NewGeoIndex constructs a GeoIndex on the default key.
func NewGeoIndex(client *redis.Client) *GeoIndex {
	return &GeoIndex{client: client, key: geoKey}
}

// Add upserts the coordinates for code.
func (g *GeoIndex) Add(ctx context.Context, code string, lat, lng float64) error {
	loc := &redis.GeoLocation{Name: code, Latitude: lat, Longitude: lng}
	if err := g.client.GeoAdd(ctx, g.key, loc).Err(); err != nil {
		return fmt.Errorf("geo add %s: %w", code, err)
	}
	return nil
}

// Remove drops the entry for code. Removing an absent code is not an error.
func (g *GeoIndex) Remove(ctx context.Context, code string) error {
	if err := g.client.ZRem(ctx, g.key, code).Err(); err != nil {
		return fmt.Errorf("geo remove %s: %w", code, err)
	}
	return nil
}

// Search returns the codes within radiusKm kilometers of (lat, lng),
// nearest first.
func (g *GeoIndex) Search(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	locs, err := g.client.GeoRadius(ctx, g.key, lng, lat, &redis.GeoRadiusQuery{
		Radius: radiusKm,
		Unit:   "km",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search around (%f, %f): %w", lat, lng, err)
	}

	codes := make([]string, 0, len(locs))
	for _, loc := range locs {
		codes = append(codes, loc.Name)
	}
	return codes, nil
}

// Count returns the number of indexed codes.
func (g *GeoIndex) Count(ctx context.Context) (int64, error) {
	n, err := g.client.ZCard(ctx, g.key).Result()
	if err != nil {
		return 0, fmt.Errorf("geo count: %w", err)
	}
	return n, nil
}
