package flights

import (
	"strings"
	"time"
)

const (
	minPassengers = 1
	maxPassengers = 9
)

// SearchCriteria is the immutable description of one logical search. It is
// created once at dispatch and never mutated afterwards.
type SearchCriteria struct {
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureDate time.Time  `json:"departure_date"`
	ReturnDate    *time.Time `json:"return_date,omitempty"`
	Passengers    int        `json:"passengers"`
	CabinClass    string     `json:"cabin_class,omitempty"`
}

// Validate performs the structural checks required before any dispatch.
func (c SearchCriteria) Validate() error {
	if strings.TrimSpace(c.Origin) == "" {
		return &ValidationError{Field: "origin", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.Destination) == "" {
		return &ValidationError{Field: "destination", Reason: "must not be empty"}
	}
	if strings.EqualFold(strings.TrimSpace(c.Origin), strings.TrimSpace(c.Destination)) {
		return &ValidationError{Field: "destination", Reason: "must differ from origin"}
	}
	if c.DepartureDate.IsZero() {
		return &ValidationError{Field: "departure_date", Reason: "must be set"}
	}
	if c.ReturnDate != nil && c.ReturnDate.Before(c.DepartureDate) {
		return &ValidationError{Field: "return_date", Reason: "must not precede departure_date"}
	}
	if c.Passengers < minPassengers || c.Passengers > maxPassengers {
		return &ValidationError{Field: "passengers", Reason: "must be between 1 and 9"}
	}
	return nil
}

// SearchOptions carries caller-supplied knobs for one search. Zero values
// fall back to the orchestrator defaults.
type SearchOptions struct {
	// MaxConcurrentSearches caps the number of simultaneously
	// non-terminal searches in the process (admission control).
	MaxConcurrentSearches int
	// SourceTimeout bounds each individual source call.
	SourceTimeout time.Duration
	// CacheTTL controls how long the aggregated raw result view lives.
	CacheTTL time.Duration
}

// SearchResult is the caller-facing outcome of a search, filter, or sort
// operation. Cached reports whether the results came straight from the
// result cache without any source call.
type SearchResult struct {
	SearchID     string        `json:"search_id"`
	Results      []Flight      `json:"results"`
	TotalResults int           `json:"total_results"`
	SearchTime   time.Duration `json:"search_time"`
	Sources      []string      `json:"sources"`
	Cached       bool          `json:"cached"`
}
