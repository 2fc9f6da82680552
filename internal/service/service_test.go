package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeronav/airports/internal/airport"
	"github.com/aeronav/airports/internal/index"
	"github.com/aeronav/airports/internal/service"
)

// ---- in-memory record store ----

type memStore struct {
	seq      int
	airports []*airport.Airport
}

func (m *memStore) match(a *airport.Airport, code string) bool {
	return a.IATA == code || a.ICAO == code
}

func (m *memStore) GetByCode(_ context.Context, code string) (*airport.Airport, error) {
	for _, a := range m.airports {
		if m.match(a, code) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetByCodes(_ context.Context, codes []string) ([]*airport.Airport, error) {
	var results []*airport.Airport
	for _, a := range m.airports {
		for _, code := range codes {
			if m.match(a, code) {
				cp := *a
				results = append(results, &cp)
				break
			}
		}
	}
	return results, nil
}

func (m *memStore) List(_ context.Context, limit int) ([]*airport.Airport, error) {
	var results []*airport.Airport
	for i, a := range m.airports {
		if i >= limit {
			break
		}
		cp := *a
		results = append(results, &cp)
	}
	return results, nil
}

func (m *memStore) Insert(_ context.Context, a *airport.Airport) (*airport.Airport, error) {
	m.seq++
	stored := *a
	stored.ID = m.seq
	m.airports = append(m.airports, &stored)
	cp := stored
	return &cp, nil
}

func (m *memStore) Update(_ context.Context, code string, p airport.Patch) (*airport.Airport, error) {
	for _, a := range m.airports {
		if !m.match(a, code) {
			continue
		}
		if p.Name != nil {
			a.Name = *p.Name
		}
		if p.City != nil {
			a.City = *p.City
		}
		if p.Latitude != nil {
			a.Latitude = p.Latitude
		}
		if p.Longitude != nil {
			a.Longitude = p.Longitude
		}
		if p.Altitude != nil {
			a.Altitude = p.Altitude
		}
		if p.Timezone != nil {
			a.Timezone = *p.Timezone
		}
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) Delete(_ context.Context, code string) (bool, error) {
	for i, a := range m.airports {
		if m.match(a, code) {
			m.airports = append(m.airports[:i], m.airports[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ---- fn-field index mocks ----

type mockGeo struct {
	addFn    func(ctx context.Context, code string, lat, lng float64) error
	removeFn func(ctx context.Context, code string) error
	searchFn func(ctx context.Context, lat, lng, radiusKm float64) ([]string, error)
	adds     []string
}

func (m *mockGeo) Add(ctx context.Context, code string, lat, lng float64) error {
	m.adds = append(m.adds, code)
	if m.addFn != nil {
		return m.addFn(ctx, code, lat, lng)
	}
	return nil
}

func (m *mockGeo) Remove(ctx context.Context, code string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, code)
	}
	return nil
}

func (m *mockGeo) Search(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, lat, lng, radiusKm)
	}
	return nil, nil
}

type mockPop struct {
	incrementFn func(ctx context.Context, code string) (float64, error)
	removeFn    func(ctx context.Context, code string) error
	topFn       func(ctx context.Context, limit int) ([]airport.PopularAirport, error)
}

func (m *mockPop) Increment(ctx context.Context, code string) (float64, error) {
	if m.incrementFn != nil {
		return m.incrementFn(ctx, code)
	}
	return 1, nil
}

func (m *mockPop) Remove(ctx context.Context, code string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, code)
	}
	return nil
}

func (m *mockPop) Top(ctx context.Context, limit int) ([]airport.PopularAirport, error) {
	if m.topFn != nil {
		return m.topFn(ctx, limit)
	}
	return nil, nil
}

// ---- helpers ----

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newService wires the service to an in-memory store and real miniredis-backed
// indexes.
func newService(t *testing.T) (*service.Service, *memStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &memStore{}
	svc := service.New(store, index.NewGeoIndex(client), index.NewPopularityIndex(client), discardLog())
	return svc, store
}

func coords(lat, lng float64) (*float64, *float64) { return &lat, &lng }

func heathrow() *airport.Airport {
	lat, lng := coords(51.4775, -0.4614)
	return &airport.Airport{
		Name:      "Heathrow",
		City:      "London",
		IATA:      "LHR",
		ICAO:      "EGLL",
		Latitude:  lat,
		Longitude: lng,
		Timezone:  "Europe/London",
	}
}

// ---- Create / GetByCode ----

func TestCreate_GetByCodeRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	stored, err := svc.Create(ctx, heathrow())
	require.NoError(t, err)
	assert.NotZero(t, stored.ID)

	got, err := svc.GetByCode(ctx, "LHR")
	require.NoError(t, err)
	assert.Equal(t, "Heathrow", got.Name)
	assert.Equal(t, "London", got.City)
	assert.Equal(t, "EGLL", got.ICAO)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 51.4775, *got.Latitude, 1e-9)
	assert.Equal(t, "Europe/London", got.Timezone)
}

func TestCreate_NoUsableCode(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), &airport.Airport{Name: "Strip"})
	assert.ErrorIs(t, err, airport.ErrNoCode)
}

func TestCreate_WithoutCoordinatesSkipsGeo(t *testing.T) {
	store := &memStore{}
	geo := &mockGeo{}
	svc := service.New(store, geo, &mockPop{}, discardLog())

	_, err := svc.Create(context.Background(), &airport.Airport{IATA: "NOC"})
	require.NoError(t, err)
	assert.Empty(t, geo.adds)
}

func TestCreate_GeoFailureIsPartial(t *testing.T) {
	store := &memStore{}
	geo := &mockGeo{
		addFn: func(_ context.Context, _ string, _, _ float64) error {
			return fmt.Errorf("redis gone")
		},
	}
	svc := service.New(store, geo, &mockPop{}, discardLog())

	stored, err := svc.Create(context.Background(), heathrow())
	require.Error(t, err)

	var partial *airport.PartialIndexError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, "LHR", partial.Code)

	require.NotNil(t, stored, "the record store write is not rolled back")
	assert.Len(t, store.airports, 1)
}

func TestGetByCode_NotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.GetByCode(context.Background(), "XXX")
	assert.ErrorIs(t, err, airport.ErrNotFound)
}

func TestGetByCode_NormalizesCase(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, heathrow())
	require.NoError(t, err)

	got, err := svc.GetByCode(ctx, " lhr ")
	require.NoError(t, err)
	assert.Equal(t, "LHR", got.IATA)
}

func TestGetByCode_IsSideEffectFree(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, heathrow())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.GetByCode(ctx, "LHR")
		require.NoError(t, err)
	}

	top, err := svc.Popular(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top, "lookups alone must not count as visits")
}

// ---- RecordVisit / Popular ----

func TestRecordVisit_ScoresAreMonotonic(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	var last float64
	for i := 0; i < 3; i++ {
		score, err := svc.RecordVisit(ctx, "lhr")
		require.NoError(t, err)
		assert.Greater(t, score, last)
		last = score
	}

	top, err := svc.Popular(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "LHR", top[0].Code, "visit codes are normalized")
	assert.Equal(t, float64(3), top[0].Score)
}

func TestPopular_EmptyRanking(t *testing.T) {
	svc, _ := newService(t)

	top, err := svc.Popular(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestPopular_DefaultLimit(t *testing.T) {
	pop := &mockPop{
		topFn: func(_ context.Context, limit int) ([]airport.PopularAirport, error) {
			assert.Equal(t, 10, limit)
			return nil, nil
		},
	}
	svc := service.New(&memStore{}, &mockGeo{}, pop, discardLog())

	_, err := svc.Popular(context.Background(), 0)
	require.NoError(t, err)
}

// ---- Update ----

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newService(t)
	name := "Renamed"
	_, err := svc.Update(context.Background(), "XXX", airport.Patch{Name: &name})
	assert.ErrorIs(t, err, airport.ErrNotFound)
}

func TestUpdate_PlainFieldEditSkipsGeo(t *testing.T) {
	store := &memStore{}
	geo := &mockGeo{}
	svc := service.New(store, geo, &mockPop{}, discardLog())
	ctx := context.Background()

	_, err := svc.Create(ctx, heathrow())
	require.NoError(t, err)
	geo.adds = nil

	name := "Heathrow T5"
	updated, err := svc.Update(ctx, "LHR", airport.Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Heathrow T5", updated.Name)
	assert.Empty(t, geo.adds, "a non-location edit must not touch the geo index")
}

func TestUpdate_CoordinatePatchMovesGeoEntry(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	lat, lng := coords(0, 0)
	_, err := svc.Create(ctx, &airport.Airport{IATA: "TST", Latitude: lat, Longitude: lng})
	require.NoError(t, err)

	newLat, newLng := coords(0.9, 0)
	_, err = svc.Update(ctx, "TST", airport.Patch{Latitude: newLat, Longitude: newLng})
	require.NoError(t, err)

	near, err := svc.Nearby(ctx, 0.9, 0, 50)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, "TST", near[0].IATA)

	old, err := svc.Nearby(ctx, 0, 0, 50)
	require.NoError(t, err)
	assert.Empty(t, old, "the old location must no longer match")
}

// ---- Delete ----

func TestDelete_CascadesToBothIndexes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, heathrow())
	require.NoError(t, err)
	_, err = svc.RecordVisit(ctx, "LHR")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "LHR"))

	_, err = svc.GetByCode(ctx, "LHR")
	assert.ErrorIs(t, err, airport.ErrNotFound)

	near, err := svc.Nearby(ctx, 51.4775, -0.4614, 100)
	require.NoError(t, err)
	assert.Empty(t, near)

	top, err := svc.Popular(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Delete(context.Background(), "XXX")
	assert.ErrorIs(t, err, airport.ErrNotFound)
}

func TestDelete_IndexFailureIsPartial(t *testing.T) {
	store := &memStore{}
	geo := &mockGeo{
		removeFn: func(_ context.Context, _ string) error { return fmt.Errorf("redis gone") },
	}
	svc := service.New(store, geo, &mockPop{}, discardLog())
	ctx := context.Background()

	_, err := svc.Create(ctx, heathrow())
	require.NoError(t, err)

	err = svc.Delete(ctx, "LHR")
	var partial *airport.PartialIndexError
	require.True(t, errors.As(err, &partial))
	assert.Empty(t, store.airports, "the record store delete stands")
}

// ---- Nearby ----

func TestNearby_FiltersByGreatCircleDistance(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// Three airports at ~0, ~100, and ~1000 km from the origin.
	for _, fix := range []struct {
		code string
		lat  float64
	}{
		{"ORI", 0},
		{"MID", 0.9},
		{"FAR", 9.0},
	} {
		lat, lng := coords(fix.lat, 0)
		_, err := svc.Create(ctx, &airport.Airport{IATA: fix.code, Latitude: lat, Longitude: lng})
		require.NoError(t, err)
	}

	near, err := svc.Nearby(ctx, 0, 0, 500)
	require.NoError(t, err)
	require.Len(t, near, 2)

	got := []string{near[0].IATA, near[1].IATA}
	assert.ElementsMatch(t, []string{"ORI", "MID"}, got)
}

func TestNearby_EmptyIndexSkipsStore(t *testing.T) {
	store := &memStore{}
	svc := service.New(failOnBatch{store, t}, &mockGeo{}, &mockPop{}, discardLog())

	near, err := svc.Nearby(context.Background(), 0, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, near)
}

// failOnBatch fails the test when the empty fast path touches the store.
type failOnBatch struct {
	*memStore
	t *testing.T
}

func (f failOnBatch) GetByCodes(_ context.Context, _ []string) ([]*airport.Airport, error) {
	f.t.Fatal("GetByCodes must not be called when the geo index returns nothing")
	return nil, nil
}

func TestNearby_ToleratesIndexStoreMismatch(t *testing.T) {
	geo := &mockGeo{
		searchFn: func(_ context.Context, _, _, _ float64) ([]string, error) {
			return []string{"GHO"}, nil // stale entry whose record is gone
		},
	}
	svc := service.New(&memStore{}, geo, &mockPop{}, discardLog())

	near, err := svc.Nearby(context.Background(), 0, 0, 100)
	require.NoError(t, err, "a mismatch is not an error")
	assert.Empty(t, near)
}
