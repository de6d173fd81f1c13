// Package notify delivers search lifecycle events to per-search
// subscribers and to a broadcast channel, independent of transport.
package notify

import (
	"errors"
	"time"

	"github.com/skyfare/flightsearch/internal/flights"
)

// EventType names a lifecycle notification.
type EventType string

// Supported event types.
const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventFiltered  EventType = "filtered"
	EventSorted    EventType = "sorted"
	EventCancelled EventType = "cancelled"
	EventNotFound  EventType = "notFound"
	EventError     EventType = "error"
)

// Event is one notification delivered to subscribers. Data carries the
// type-specific payload.
type Event struct {
	Type     EventType `json:"type"`
	SearchID string    `json:"search_id,omitempty"`
	At       time.Time `json:"at"`
	Data     any       `json:"data,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	switch e.Type {
	case EventProgress, EventCompleted, EventFailed, EventFiltered,
		EventSorted, EventCancelled, EventNotFound, EventError:
	default:
		return errors.New("unknown event type")
	}
	if e.SearchID == "" {
		return errors.New("search id is required")
	}
	return nil
}

// ProgressData is the payload of progress events.
type ProgressData struct {
	SearchID            string                `json:"search_id"`
	Status              flights.Status        `json:"status"`
	Progress            float64               `json:"progress"`
	CompletedSources    []string              `json:"completed_sources"`
	TotalSources        int                   `json:"total_sources"`
	ResultsCount        int                   `json:"results_count"`
	Errors              []flights.SourceError `json:"errors,omitempty"`
	EstimatedCompletion time.Time             `json:"estimated_completion"`
}

// ProgressPayload builds the progress event payload from a snapshot.
func ProgressPayload(p flights.Progress) ProgressData {
	return ProgressData{
		SearchID:            p.SearchID,
		Status:              p.Status,
		Progress:            p.Fraction(),
		CompletedSources:    p.CompletedSources,
		TotalSources:        p.TotalSources,
		ResultsCount:        len(p.Results),
		Errors:              p.Errors,
		EstimatedCompletion: p.EstimatedCompletion,
	}
}

// CompletedData is the payload of completed events.
type CompletedData struct {
	SearchID     string           `json:"search_id"`
	Results      []flights.Flight `json:"results"`
	TotalResults int              `json:"total_results"`
}

// FailedData is the payload of failed and error events.
type FailedData struct {
	SearchID string `json:"search_id"`
	Error    string `json:"error"`
}

// FilteredData is the payload of filtered events.
type FilteredData struct {
	SearchID      string           `json:"search_id"`
	Filters       flights.Filters  `json:"filters"`
	OriginalCount int              `json:"original_count"`
	FilteredCount int              `json:"filtered_count"`
	Results       []flights.Flight `json:"results"`
}

// SortedData is the payload of sorted events.
type SortedData struct {
	SearchID  string            `json:"search_id"`
	SortBy    flights.SortKey   `json:"sort_by"`
	SortOrder flights.SortOrder `json:"sort_order"`
	Results   []flights.Flight  `json:"results"`
}
