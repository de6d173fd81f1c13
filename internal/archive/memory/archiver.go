// Package memory contains an in-memory archiver for tests.
package memory

import (
	"context"
	"sync"

	"github.com/skyfare/flightsearch/internal/flights"
)

// Archiver stores archived searches for inspection.
type Archiver struct {
	mu      sync.RWMutex
	records []flights.ArchivedSearch
}

// New returns a memory Archiver.
func New() *Archiver {
	return &Archiver{}
}

// ArchiveSearch records the search.
func (a *Archiver) ArchiveSearch(_ context.Context, rec flights.ArchivedSearch) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

// Records returns the recorded archives.
func (a *Archiver) Records() []flights.ArchivedSearch {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]flights.ArchivedSearch, len(a.records))
	copy(out, a.records)
	return out
}
