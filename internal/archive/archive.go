// Package archive persists terminal searches to optional long-term
// stores. Archival never affects search correctness; failures are logged
// and counted, not propagated.
package archive

import (
	"context"
	"errors"

	"github.com/skyfare/flightsearch/internal/flights"
)

// Multi fans one archival out to several backends, collecting failures.
type Multi struct {
	archivers []flights.Archiver
}

// NewMulti composes archivers; nil entries are skipped.
func NewMulti(archivers ...flights.Archiver) *Multi {
	out := make([]flights.Archiver, 0, len(archivers))
	for _, a := range archivers {
		if a != nil {
			out = append(out, a)
		}
	}
	return &Multi{archivers: out}
}

// ArchiveSearch forwards to every backend and joins their errors.
func (m *Multi) ArchiveSearch(ctx context.Context, rec flights.ArchivedSearch) error {
	var errs []error
	for _, a := range m.archivers {
		if err := a.ArchiveSearch(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of configured backends.
func (m *Multi) Len() int {
	return len(m.archivers)
}
