package index

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aeronav/airports/internal/airport"
)

const (
	popularityKey = "airports:popularity"

	// popularityTTL is the shared expiry for the whole ranking. Every visit
	// resets it; when it elapses the entire set is cleared, not single entries.
	popularityTTL = 24 * time.Hour

	// initMember keeps the set present before any real visit has occurred.
	// It is never surfaced by Top: real codes are uppercase alphanumerics,
	// so no airport can collide with it.
	initMember = "__init__"
)

// PopularityIndex maintains a time-decayed visit ranking of airport codes.
type PopularityIndex struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewPopularityIndex constructs a PopularityIndex with the 24-hour shared TTL.
func NewPopularityIndex(client *redis.Client) *PopularityIndex {
	return &PopularityIndex{client: client, key: popularityKey, ttl: popularityTTL}
}

// EnsureReady makes sure the ranking structure exists by inserting the init
// marker at score zero. Existing scores are left untouched.
func (p *PopularityIndex) EnsureReady(ctx context.Context) error {
	if err := p.client.ZAddNX(ctx, p.key, redis.Z{Score: 0, Member: initMember}).Err(); err != nil {
		return fmt.Errorf("popularity ensure ready: %w", err)
	}
	return nil
}

// Ready reports whether the ranking structure currently exists.
func (p *PopularityIndex) Ready(ctx context.Context) (bool, error) {
	n, err := p.client.Exists(ctx, p.key).Result()
	if err != nil {
		return false, fmt.Errorf("popularity exists: %w", err)
	}
	return n > 0, nil
}

// Increment adds one visit for code and resets the shared TTL to the full
// window. Returns the new score.
func (p *PopularityIndex) Increment(ctx context.Context, code string) (float64, error) {
	score, err := p.client.ZIncrBy(ctx, p.key, 1, code).Result()
	if err != nil {
		return 0, fmt.Errorf("popularity increment %s: %w", code, err)
	}

	if err := p.client.Expire(ctx, p.key, p.ttl).Err(); err != nil {
		return 0, fmt.Errorf("popularity expire reset: %w", err)
	}
	return score, nil
}

// Remove drops the entry for code. Removing an absent code is not an error.
func (p *PopularityIndex) Remove(ctx context.Context, code string) error {
	if err := p.client.ZRem(ctx, p.key, code).Err(); err != nil {
		return fmt.Errorf("popularity remove %s: %w", code, err)
	}
	return nil
}

// Top returns up to limit entries ordered by score descending, with the init
// marker filtered out. An empty or marker-only set yields an empty slice.
// Exact score ties keep Redis's internal ordering; no secondary key is applied.
func (p *PopularityIndex) Top(ctx context.Context, limit int) ([]airport.PopularAirport, error) {
	if limit <= 0 {
		return []airport.PopularAirport{}, nil
	}

	// Fetch one extra slot so the marker cannot eat a real entry.
	zs, err := p.client.ZRevRangeWithScores(ctx, p.key, 0, int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("popularity top %d: %w", limit, err)
	}

	results := make([]airport.PopularAirport, 0, len(zs))
	for _, z := range zs {
		code, ok := z.Member.(string)
		if !ok || code == initMember {
			continue
		}
		results = append(results, airport.PopularAirport{Code: code, Score: z.Score})
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
