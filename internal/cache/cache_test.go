package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skyfare/flightsearch/internal/flights"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleResults(prices ...int64) []flights.Flight {
	out := make([]flights.Flight, 0, len(prices))
	for i, p := range prices {
		out = append(out, flights.Flight{
			ID:    string(rune('a' + i)),
			Price: p,
		})
	}
	return out
}

// TestPutRawGetRaw verifies the basic store and fetch round trip clones on
// both sides.
func TestPutRawGetRaw(t *testing.T) {
	t.Parallel()

	c := New(Config{}, newFakeClock())
	original := sampleResults(100, 200)
	require.NoError(t, c.PutRaw("s1", original, time.Minute))

	original[0].Price = -1
	got, ok := c.GetRaw("s1")
	require.True(t, ok)
	require.Equal(t, int64(100), got[0].Price, "cache must hold its own copy")

	got[1].Price = -1
	again, _ := c.GetRaw("s1")
	require.Equal(t, int64(200), again[1].Price, "readers must get their own copy")
}

// TestPutRawExactlyOnce verifies a second raw write for a live search is
// rejected, but allowed again after expiry.
func TestPutRawExactlyOnce(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New(Config{}, clk)
	require.NoError(t, c.PutRaw("s1", sampleResults(100), time.Minute))
	require.ErrorIs(t, c.PutRaw("s1", sampleResults(999), time.Minute), flights.ErrDuplicateSearch)

	clk.Advance(2 * time.Minute)
	require.NoError(t, c.PutRaw("s1", sampleResults(300), time.Minute))
}

// TestExpiryHidesEntry verifies raw and derived views vanish together once
// the TTL passes.
func TestExpiryHidesEntry(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New(Config{}, clk)
	require.NoError(t, c.PutRaw("s1", sampleResults(100), time.Minute))
	require.NoError(t, c.PutDerived("s1", "f:1", sampleResults(100)))

	clk.Advance(61 * time.Second)

	_, ok := c.GetRaw("s1")
	require.False(t, ok)
	_, ok = c.GetDerived("s1", "f:1")
	require.False(t, ok)
	_, ok = c.Latest("s1")
	require.False(t, ok)
}

// TestPutDerivedRequiresLiveRaw verifies derived views cannot attach to an
// absent or expired search.
func TestPutDerivedRequiresLiveRaw(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New(Config{}, clk)
	require.ErrorIs(t, c.PutDerived("missing", "f:1", nil), flights.ErrNotFound)

	require.NoError(t, c.PutRaw("s1", sampleResults(100), time.Minute))
	clk.Advance(2 * time.Minute)
	require.ErrorIs(t, c.PutDerived("s1", "f:1", nil), flights.ErrNotFound)
}

// TestLatestPrefersDerivedView verifies Latest returns the raw view until a
// derived view is written, then the most recent derived view.
func TestLatestPrefersDerivedView(t *testing.T) {
	t.Parallel()

	c := New(Config{}, newFakeClock())
	require.NoError(t, c.PutRaw("s1", sampleResults(100, 200, 300), time.Minute))

	got, ok := c.Latest("s1")
	require.True(t, ok)
	require.Len(t, got, 3)

	require.NoError(t, c.PutDerived("s1", "f:1", sampleResults(100)))
	got, ok = c.Latest("s1")
	require.True(t, ok)
	require.Len(t, got, 1)

	require.NoError(t, c.PutDerived("s1", "s:price:asc", sampleResults(100, 200)))
	got, ok = c.Latest("s1")
	require.True(t, ok)
	require.Len(t, got, 2)
}

// TestEvictOldestAtCapacity verifies cap pressure evicts the oldest raw
// entry, not the newest.
func TestEvictOldestAtCapacity(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New(Config{MaxEntries: 2}, clk)
	require.NoError(t, c.PutRaw("oldest", sampleResults(100), time.Hour))
	clk.Advance(time.Second)
	require.NoError(t, c.PutRaw("middle", sampleResults(100), time.Hour))
	clk.Advance(time.Second)
	require.NoError(t, c.PutRaw("newest", sampleResults(100), time.Hour))

	_, ok := c.GetRaw("oldest")
	require.False(t, ok)
	_, ok = c.GetRaw("middle")
	require.True(t, ok)
	_, ok = c.GetRaw("newest")
	require.True(t, ok)
	require.Equal(t, 2, c.Len())
}

// TestSweepCountsEvictions verifies Sweep removes exactly the expired
// entries.
func TestSweepCountsEvictions(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := New(Config{}, clk)
	require.NoError(t, c.PutRaw("short", sampleResults(100), time.Minute))
	require.NoError(t, c.PutRaw("long", sampleResults(100), time.Hour))

	clk.Advance(2 * time.Minute)
	require.Equal(t, 1, c.Sweep())
	require.Equal(t, 1, c.Len())

	_, ok := c.GetRaw("long")
	require.True(t, ok)
}

// TestStatsReportsOccupancy verifies the health-facing counters.
func TestStatsReportsOccupancy(t *testing.T) {
	t.Parallel()

	c := New(Config{MaxEntries: 8}, newFakeClock())
	require.NoError(t, c.PutRaw("s1", sampleResults(100), time.Minute))

	stats := c.Stats()
	require.Equal(t, 1, stats.Entries)
	require.Equal(t, 8, stats.MaxEntries)
}
