// Package postgres provides a Postgres-backed search archiver.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyfare/flightsearch/internal/flights"
)

// DB is the pool surface the archiver needs; *pgxpool.Pool satisfies it,
// as does a pgxmock pool in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Archiver writes one row per terminal search.
type Archiver struct {
	db DB
}

// New creates an Archiver over an existing pool.
func New(db DB) *Archiver {
	return &Archiver{db: db}
}

// Connect opens a pgx pool and wraps it in an Archiver.
func Connect(ctx context.Context, dsn string) (*Archiver, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("create connection pool: %w", err)
	}
	return New(pool), pool, nil
}

const insertSearch = `
	INSERT INTO search_archive
		(search_id, origin, destination, departure_date, passengers,
		 sources, status, result_count, results, errors, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (search_id) DO NOTHING;
`

// ArchiveSearch inserts the terminal search. Results and errors are
// stored as JSONB documents.
func (a *Archiver) ArchiveSearch(ctx context.Context, rec flights.ArchivedSearch) error {
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	srcErrors, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	_, err = a.db.Exec(ctx, insertSearch,
		rec.SearchID,
		rec.Criteria.Origin,
		rec.Criteria.Destination,
		rec.Criteria.DepartureDate,
		rec.Criteria.Passengers,
		rec.Sources,
		string(rec.Status),
		len(rec.Results),
		results,
		srcErrors,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert search archive: %w", err)
	}
	return nil
}
