// Package reconcile brings the derived Redis indexes into agreement with the
// authoritative record store at process start. It only acts when counts show
// an index is absent, so running it on every start is safe.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/aeronav/airports/internal/airport"
	"github.com/aeronav/airports/internal/metrics"
	"github.com/aeronav/airports/internal/seed"
)

// restoreConcurrency bounds the parallel GEOADDs during an index rebuild.
const restoreConcurrency = 8

// RecordStore is the authoritative-store access the reconciler needs.
type RecordStore interface {
	Count(ctx context.Context) (int64, error)
	All(ctx context.Context) ([]*airport.Airport, error)
	Insert(ctx context.Context, a *airport.Airport) (*airport.Airport, error)
}

// GeoIndex is the derived spatial index access the reconciler needs.
type GeoIndex interface {
	Count(ctx context.Context) (int64, error)
	Add(ctx context.Context, code string, lat, lng float64) error
}

// PopularityIndex is the derived ranking access the reconciler needs.
type PopularityIndex interface {
	EnsureReady(ctx context.Context) error
}

// Result summarizes what a reconciliation run actually did.
type Result struct {
	Action   string // "none", "restore", "bootstrap", or "empty"
	Loaded   int    // rows ingested from the seed file
	Skipped  int    // seed rows dropped (unparseable or no usable code)
	Restored int    // geo entries rebuilt from the record store
}

// Reconciler decides at startup whether the derived indexes must be rebuilt
// from the record store, and performs that rebuild.
type Reconciler struct {
	store    RecordStore
	geo      GeoIndex
	pop      PopularityIndex
	seedPath string
	metrics  *metrics.Registry
	log      *slog.Logger
}

// New constructs a Reconciler.
func New(store RecordStore, geo GeoIndex, pop PopularityIndex, seedPath string, m *metrics.Registry, log *slog.Logger) *Reconciler {
	return &Reconciler{store: store, geo: geo, pop: pop, seedPath: seedPath, metrics: m, log: log}
}

// Run executes one reconciliation pass:
//   - store and geo index both populated: ensure the ranking exists, nothing else;
//   - store populated, geo index empty: rebuild the geo index from the store;
//   - store empty: bootstrap both from the external seed file.
//
// A missing or unparseable seed file leaves the system empty without failing.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	rows, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}

	geoEntries, err := r.geo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting geo entries: %w", err)
	}

	switch {
	case rows > 0 && geoEntries > 0:
		if err := r.pop.EnsureReady(ctx); err != nil {
			return nil, err
		}
		r.log.Info("indexes already populated", "records", rows, "geo_entries", geoEntries)
		return &Result{Action: "none"}, nil

	case rows > 0:
		return r.restore(ctx)

	default:
		return r.bootstrap(ctx)
	}
}

// restore rebuilds the geo index from the record store after index-store data
// loss. Rows without coordinates or a usable code are skipped.
func (r *Reconciler) restore(ctx context.Context) (*Result, error) {
	airports, err := r.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading records for restore: %w", err)
	}

	var restored, failed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(restoreConcurrency)

	for _, a := range airports {
		code, err := a.Code()
		if err != nil || !a.HasCoordinates() {
			continue
		}
		lat, lng := *a.Latitude, *a.Longitude

		g.Go(func() error {
			if err := r.geo.Add(gCtx, code, lat, lng); err != nil {
				r.log.Warn("geo restore failed for code", "code", code, "err", err)
				failed.Add(1)
				return nil
			}
			restored.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := r.pop.EnsureReady(ctx); err != nil {
		return nil, err
	}

	r.metrics.IndexRebuilds.Inc()
	r.log.Info("geo index restored from record store",
		"restored", restored.Load(), "failed", failed.Load())

	return &Result{Action: "restore", Restored: int(restored.Load())}, nil
}

// bootstrap seeds an empty record store and geo index from the external
// dataset. Every row failure is skipped, never fatal.
func (r *Reconciler) bootstrap(ctx context.Context) (*Result, error) {
	records, unparseable, err := seed.Load(r.seedPath)
	if err != nil {
		var formatErr *seed.FormatError
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.log.Warn("seed file missing, leaving system empty", "path", r.seedPath)
		case errors.As(err, &formatErr):
			r.log.Warn("seed file unparseable, leaving system empty", "path", r.seedPath, "err", err)
		default:
			r.log.Warn("seed file unreadable, leaving system empty", "path", r.seedPath, "err", err)
		}
		return &Result{Action: "empty"}, nil
	}

	res := &Result{Action: "bootstrap", Skipped: unparseable}

	for _, rec := range records {
		code, err := rec.Code()
		if err != nil {
			res.Skipped++
			continue
		}

		stored, err := r.store.Insert(ctx, rec.Airport())
		if err != nil {
			r.log.Warn("seed insert failed", "code", code, "err", err)
			res.Skipped++
			continue
		}
		res.Loaded++

		if stored.HasCoordinates() {
			if err := r.geo.Add(ctx, code, *stored.Latitude, *stored.Longitude); err != nil {
				r.log.Warn("seed geo add failed", "code", code, "err", err)
			}
		}
	}

	if err := r.pop.EnsureReady(ctx); err != nil {
		return nil, err
	}

	r.metrics.SeedRowsLoaded.Add(float64(res.Loaded))
	r.metrics.SeedRowsSkipped.Add(float64(res.Skipped))
	r.log.Info("bootstrap completed", "loaded", res.Loaded, "skipped", res.Skipped)

	return res, nil
}
