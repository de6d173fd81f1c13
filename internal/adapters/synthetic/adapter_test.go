package synthetic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skyfare/flightsearch/internal/flights"
)

func criteriaFixture() flights.SearchCriteria {
	return flights.SearchCriteria{
		Origin:        "CGK",
		Destination:   "DPS",
		DepartureDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Passengers:    2,
	}
}

// TestSearchDeterministic verifies the same criteria always produce the
// same inventory for one source, while seeds separate sources.
func TestSearchDeterministic(t *testing.T) {
	t.Parallel()

	a := New("synthetic-a", Config{Seed: 1})
	first, err := a.Search(context.Background(), criteriaFixture())
	require.NoError(t, err)
	second, err := a.Search(context.Background(), criteriaFixture())
	require.NoError(t, err)
	require.Equal(t, first, second)

	b := New("synthetic-b", Config{Seed: 2})
	other, err := b.Search(context.Background(), criteriaFixture())
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

// TestSearchShapesOffers verifies the generated offers carry the criteria's
// route and sane field values.
func TestSearchShapesOffers(t *testing.T) {
	t.Parallel()

	a := New("synthetic", Config{MinFlights: 4, MaxFlights: 4})
	got, err := a.Search(context.Background(), criteriaFixture())
	require.NoError(t, err)
	require.Len(t, got, 4)

	for _, f := range got {
		require.Equal(t, "synthetic", f.Source)
		require.Equal(t, "CGK", f.Departure.Airport)
		require.Equal(t, "DPS", f.Arrival.Airport)
		require.Positive(t, f.Price)
		require.Positive(t, f.DurationMinutes)
		require.Equal(t, "economy", f.CabinClass)
		require.True(t, f.Arrival.Time.After(f.Departure.Time))
	}
}

// TestSearchHonorsContextDuringLatency verifies a cancelled context aborts
// the simulated latency with the context error.
func TestSearchHonorsContextDuringLatency(t *testing.T) {
	t.Parallel()

	a := New("slow", Config{Latency: 10 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.Search(ctx, criteriaFixture())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

// TestSearchConfiguredFailure verifies the scripted error path wraps the
// cause in an adapter error.
func TestSearchConfiguredFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("inventory offline")
	a := New("broken", Config{Err: cause})

	_, err := a.Search(context.Background(), criteriaFixture())
	require.ErrorIs(t, err, cause)
	var aErr *flights.AdapterError
	require.ErrorAs(t, err, &aErr)
	require.Equal(t, "broken", aErr.Source)

	require.False(t, a.Health(context.Background()).Reachable)
}
