// Package cache stores raw and derived search result views with TTL
// expiry and a bounded entry count.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skyfare/flightsearch/internal/flights"
)

const (
	defaultMaxEntries    = 256
	defaultSweepInterval = time.Minute
)

// Config bounds the cache.
type Config struct {
	// MaxEntries caps the number of raw views; the oldest entry is
	// evicted when a new search would exceed it.
	MaxEntries int
	// SweepInterval controls the background expiry sweep in Run.
	SweepInterval time.Duration
	Logger        *zap.Logger
}

// Cache holds one raw view per completed search plus any derived
// (filtered or sorted) views computed from it. Derived views have no TTL
// of their own: they die with the raw entry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	cfg     Config
	clock   flights.Clock
	logger  *zap.Logger
}

type entry struct {
	results   []flights.Flight
	createdAt time.Time
	expiresAt time.Time
	derived   map[string][]flights.Flight
	// latestDerived remembers the most recently written derived key so
	// sorts can chain onto a preceding filter.
	latestDerived string
}

// New constructs a Cache.
func New(cfg Config, clock flights.Clock) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]*entry),
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
	}
}

// PutRaw writes the aggregated result set for a search. The raw view is
// written exactly once; a second write for the same ID is rejected.
func (c *Cache) PutRaw(searchID string, results []flights.Flight, ttl time.Duration) error {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, exists := c.entries[searchID]; exists && now.Before(e.expiresAt) {
		return flights.ErrDuplicateSearch
	}
	if len(c.entries) >= c.cfg.MaxEntries {
		c.evictOldestLocked()
	}
	c.entries[searchID] = &entry{
		results:   flights.CloneFlights(results),
		createdAt: now,
		expiresAt: now.Add(ttl),
		derived:   make(map[string][]flights.Flight),
	}
	return nil
}

// GetRaw returns the raw view, or false when absent or expired.
func (c *Cache) GetRaw(searchID string) ([]flights.Flight, bool) {
	c.mu.RLock()
	e, ok := c.entries[searchID]
	var results []flights.Flight
	if ok && c.clock.Now().Before(e.expiresAt) {
		results = flights.CloneFlights(e.results)
	} else {
		ok = false
	}
	c.mu.RUnlock()
	return results, ok
}

// PutDerived stores a filtered or sorted view under the given key. The
// raw entry must still be live; derived views inherit its deadline.
func (c *Cache) PutDerived(searchID, key string, results []flights.Flight) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[searchID]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return flights.ErrNotFound
	}
	e.derived[key] = flights.CloneFlights(results)
	e.latestDerived = key
	return nil
}

// GetDerived returns one derived view by key.
func (c *Cache) GetDerived(searchID, key string) ([]flights.Flight, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[searchID]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return nil, false
	}
	results, ok := e.derived[key]
	if !ok {
		return nil, false
	}
	return flights.CloneFlights(results), true
}

// Latest returns the most recently derived view for a search, falling
// back to the raw view when nothing has been derived yet.
func (c *Cache) Latest(searchID string) ([]flights.Flight, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[searchID]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return nil, false
	}
	if e.latestDerived != "" {
		if results, ok := e.derived[e.latestDerived]; ok {
			return flights.CloneFlights(results), true
		}
	}
	return flights.CloneFlights(e.results), true
}

// Remove drops a search's raw and derived views.
func (c *Cache) Remove(searchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, searchID)
}

// Sweep removes expired raw entries (and with them all derived views)
// and returns how many were evicted.
func (c *Cache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Run drives the periodic sweep until ctx finishes.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("cache sweep", zap.Int("evicted", n))
			}
		}
	}
}

// Len returns the number of live raw entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats describes cache occupancy for health reporting.
type Stats struct {
	Entries    int `json:"entries"`
	MaxEntries int `json:"max_entries"`
}

// Stats returns current occupancy.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Entries: len(c.entries), MaxEntries: c.cfg.MaxEntries}
}

// evictOldestLocked removes the entry with the earliest creation time.
// Requires c.mu held.
func (c *Cache) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, e := range c.entries {
		if oldestID == "" || e.createdAt.Before(oldestAt) {
			oldestID = id
			oldestAt = e.createdAt
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
		c.logger.Debug("cache evicted oldest entry", zap.String("search_id", oldestID))
	}
}
