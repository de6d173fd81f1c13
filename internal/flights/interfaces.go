package flights

import (
	"context"
	"time"
)

// Adapter is the capability-uniform search interface every external source
// sits behind. Retry and backoff are the adapter's own concern; the
// orchestrator only bounds calls with a per-source deadline.
type Adapter interface {
	// ID returns the stable source identifier.
	ID() string
	// Search queries the source. Implementations must honor ctx.
	Search(ctx context.Context, criteria SearchCriteria) ([]Flight, error)
	// Health probes reachability and reports observed latency.
	Health(ctx context.Context) AdapterHealth
}

// AdapterHealth is a read-only reachability snapshot for one source.
type AdapterHealth struct {
	Source    string        `json:"source"`
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates search identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// ArchivedSearch is the permanent record of a completed search handed to
// an Archiver. Archival is optional and never affects search correctness.
type ArchivedSearch struct {
	SearchID   string         `json:"search_id"`
	Criteria   SearchCriteria `json:"criteria"`
	Sources    []string       `json:"sources"`
	Status     Status         `json:"status"`
	Results    []Flight       `json:"results"`
	Errors     []SourceError  `json:"errors"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Archiver persists terminal searches for later analysis.
type Archiver interface {
	ArchiveSearch(ctx context.Context, rec ArchivedSearch) error
}
