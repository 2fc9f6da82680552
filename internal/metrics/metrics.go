package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the Prometheus metrics exported by the service.
type Registry struct {
	VisitsRecorded  prometheus.Counter
	GeoSearches     prometheus.Counter
	SeedRowsLoaded  prometheus.Counter
	SeedRowsSkipped prometheus.Counter
	IndexRebuilds   prometheus.Counter
}

// New registers and returns all metrics on the given registerer. Tests pass
// a private prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		VisitsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "airports_visits_recorded_total",
			Help: "Total airport detail visits counted into the popularity ranking",
		}),
		GeoSearches: factory.NewCounter(prometheus.CounterOpts{
			Name: "airports_geo_searches_total",
			Help: "Total radius searches served by the geo index",
		}),
		SeedRowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "airports_seed_rows_loaded_total",
			Help: "Seed rows ingested into the record store during bootstrap",
		}),
		SeedRowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "airports_seed_rows_skipped_total",
			Help: "Seed rows skipped during bootstrap (unparseable or no usable code)",
		}),
		IndexRebuilds: factory.NewCounter(prometheus.CounterOpts{
			Name: "airports_index_rebuilds_total",
			Help: "Times the geo index was rebuilt from the record store",
		}),
	}
}
