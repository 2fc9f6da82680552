package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aeronav/airports/internal/airport"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access for airport records.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

const airportColumns = `id, name, city, iata_code, icao_code, latitude, longitude, altitude, timezone, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAirport scans one airports row. The code columns are nullable in the
// schema but exposed as plain strings on the domain type.
func scanAirport(row rowScanner) (*airport.Airport, error) {
	var a airport.Airport
	var iata, icao *string

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.City,
		&iata,
		&icao,
		&a.Latitude,
		&a.Longitude,
		&a.Altitude,
		&a.Timezone,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if iata != nil {
		a.IATA = *iata
	}
	if icao != nil {
		a.ICAO = *icao
	}
	return &a, nil
}

// nullable maps the empty string to a SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Count returns the authoritative row count.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM airports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting airports: %w", err)
	}
	return n, nil
}

// GetByCode retrieves the airport whose IATA or ICAO code matches.
// Returns nil, nil when no record matches.
func (r *Repository) GetByCode(ctx context.Context, code string) (*airport.Airport, error) {
	q := `SELECT ` + airportColumns + ` FROM airports WHERE iata_code = $1 OR icao_code = $1`

	a, err := scanAirport(r.q.QueryRow(ctx, q, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying airport %s: %w", code, err)
	}
	return a, nil
}

// GetByCodes retrieves every airport whose IATA or ICAO code appears in codes,
// in one batched query.
func (r *Repository) GetByCodes(ctx context.Context, codes []string) ([]*airport.Airport, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	q := `SELECT ` + airportColumns + ` FROM airports WHERE iata_code = ANY($1) OR icao_code = ANY($1)`

	rows, err := r.q.Query(ctx, q, codes)
	if err != nil {
		return nil, fmt.Errorf("querying airports by codes: %w", err)
	}
	defer rows.Close()

	return collectAirports(rows)
}

// List returns up to limit airports in insertion order.
func (r *Repository) List(ctx context.Context, limit int) ([]*airport.Airport, error) {
	q := `SELECT ` + airportColumns + ` FROM airports ORDER BY id LIMIT $1`

	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("listing airports: %w", err)
	}
	defer rows.Close()

	return collectAirports(rows)
}

// All returns every airport. Used by the reconciler to rebuild indexes.
func (r *Repository) All(ctx context.Context) ([]*airport.Airport, error) {
	q := `SELECT ` + airportColumns + ` FROM airports ORDER BY id`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying all airports: %w", err)
	}
	defer rows.Close()

	return collectAirports(rows)
}

func collectAirports(rows pgx.Rows) ([]*airport.Airport, error) {
	var results []*airport.Airport
	for rows.Next() {
		a, err := scanAirport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning airport row: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating airport rows: %w", err)
	}
	return results, nil
}

// Insert stores a new airport record and returns it with its generated
// identity and timestamps filled in.
func (r *Repository) Insert(ctx context.Context, a *airport.Airport) (*airport.Airport, error) {
	const q = `
		INSERT INTO airports (name, city, iata_code, icao_code, latitude, longitude, altitude, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	stored := *a
	err := r.q.QueryRow(ctx, q,
		a.Name,
		a.City,
		nullable(a.IATA),
		nullable(a.ICAO),
		a.Latitude,
		a.Longitude,
		a.Altitude,
		a.Timezone,
	).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting airport: %w", err)
	}

	return &stored, nil
}

// Update applies the non-nil patch fields to the record matching code.
// Returns nil, nil when no record matches.
func (r *Repository) Update(ctx context.Context, code string, p airport.Patch) (*airport.Airport, error) {
	const q = `
		UPDATE airports
		SET name       = COALESCE($2, name),
		    city       = COALESCE($3, city),
		    latitude   = COALESCE($4, latitude),
		    longitude  = COALESCE($5, longitude),
		    altitude   = COALESCE($6, altitude),
		    timezone   = COALESCE($7, timezone),
		    updated_at = NOW()
		WHERE iata_code = $1 OR icao_code = $1
		RETURNING ` + airportColumns

	a, err := scanAirport(r.q.QueryRow(ctx, q, code, p.Name, p.City, p.Latitude, p.Longitude, p.Altitude, p.Timezone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("updating airport %s: %w", code, err)
	}
	return a, nil
}

// Delete removes the record matching code and reports whether a row matched.
func (r *Repository) Delete(ctx context.Context, code string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM airports WHERE iata_code = $1 OR icao_code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("deleting airport %s: %w", code, err)
	}
	return tag.RowsAffected() > 0, nil
}
