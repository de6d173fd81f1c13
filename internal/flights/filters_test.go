package flights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }

func filterFixture() []Flight {
	dep := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	return []Flight{
		{
			ID:              "f1",
			Airline:         Airline{Code: "GA", Name: "Garuda Indonesia"},
			Departure:       Endpoint{Airport: "CGK", Time: dep},
			DurationMinutes: 110,
			Stops:           0,
			Price:           150_000,
		},
		{
			ID:              "f2",
			Airline:         Airline{Code: "QZ", Name: "AirAsia Indonesia"},
			Departure:       Endpoint{Airport: "CGK", Time: dep.Add(6 * time.Hour)},
			DurationMinutes: 150,
			Stops:           1,
			Price:           90_000,
		},
		{
			ID:              "f3",
			Airline:         Airline{Code: "GA", Name: "Garuda Indonesia"},
			Departure:       Endpoint{Airport: "CGK", Time: dep.Add(12 * time.Hour)},
			DurationMinutes: 200,
			Stops:           2,
			Price:           300_000,
		},
	}
}

// TestFiltersMatchPredicates covers each predicate in isolation.
func TestFiltersMatchPredicates(t *testing.T) {
	t.Parallel()

	src := filterFixture()

	tests := []struct {
		name    string
		filters Filters
		wantIDs []string
	}{
		{
			name:    "no predicates passes everything",
			filters: Filters{},
			wantIDs: []string{"f1", "f2", "f3"},
		},
		{
			name:    "price range",
			filters: Filters{PriceMin: int64p(100_000), PriceMax: int64p(200_000)},
			wantIDs: []string{"f1"},
		},
		{
			name:    "max stops",
			filters: Filters{MaxStops: intp(1)},
			wantIDs: []string{"f1", "f2"},
		},
		{
			name:    "duration window",
			filters: Filters{DurationMin: intp(120), DurationMax: intp(180)},
			wantIDs: []string{"f2"},
		},
		{
			name:    "airline by code case-insensitive",
			filters: Filters{Airlines: []string{"ga"}},
			wantIDs: []string{"f1", "f3"},
		},
		{
			name:    "airline by name",
			filters: Filters{Airlines: []string{"AirAsia Indonesia"}},
			wantIDs: []string{"f2"},
		},
		{
			name: "departure window",
			filters: Filters{
				DepartureAfter:  timep(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)),
				DepartureBefore: timep(time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)),
			},
			wantIDs: []string{"f2"},
		},
		{
			name:    "conjunction of predicates",
			filters: Filters{MaxStops: intp(2), PriceMin: int64p(200_000)},
			wantIDs: []string{"f3"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := tc.filters.Apply(src)
			ids := make([]string, 0, len(got))
			for _, f := range got {
				ids = append(ids, f.ID)
			}
			require.Equal(t, tc.wantIDs, ids)
		})
	}
}

func timep(v time.Time) *time.Time { return &v }

// TestFiltersApplyPreservesOrder verifies filtering keeps input order and
// does not mutate the source slice.
func TestFiltersApplyPreservesOrder(t *testing.T) {
	t.Parallel()

	src := filterFixture()
	got := Filters{MaxStops: intp(1)}.Apply(src)
	require.Len(t, got, 2)
	require.Equal(t, "f1", got[0].ID)
	require.Equal(t, "f2", got[1].ID)
	require.Len(t, src, 3)
}

// TestFiltersHashDeterministic verifies equivalent filters hash identically
// regardless of airline order and casing, and different filters diverge.
func TestFiltersHashDeterministic(t *testing.T) {
	t.Parallel()

	a := Filters{PriceMax: int64p(100), Airlines: []string{"GA", "qz"}}
	b := Filters{PriceMax: int64p(100), Airlines: []string{"QZ", "ga"}}
	require.Equal(t, a.Hash(), b.Hash())

	c := Filters{PriceMax: int64p(101), Airlines: []string{"GA", "qz"}}
	require.NotEqual(t, a.Hash(), c.Hash())

	require.NotEqual(t, Filters{}.Hash(), a.Hash())
	require.Equal(t, Filters{}.Hash(), Filters{}.Hash())
}
