// Package pubsub publishes terminal-search notices to a Google Cloud
// Pub/Sub topic so downstream consumers (pricing analytics, alerting) can
// react without polling.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/skyfare/flightsearch/internal/flights"
)

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// terminalNotice is the wire form; full result sets stay out of the
// message to keep payloads small.
type terminalNotice struct {
	SearchID    string    `json:"search_id"`
	Status      string    `json:"status"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Sources     []string  `json:"sources"`
	ResultCount int       `json:"result_count"`
	ErrorCount  int       `json:"error_count"`
	FinishedAt  time.Time `json:"finished_at"`
}

// ArchiveSearch publishes a terminal notice for the search.
func (p *Publisher) ArchiveSearch(ctx context.Context, rec flights.ArchivedSearch) error {
	if p.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(terminalNotice{
		SearchID:    rec.SearchID,
		Status:      string(rec.Status),
		Origin:      rec.Criteria.Origin,
		Destination: rec.Criteria.Destination,
		Sources:     rec.Sources,
		ResultCount: len(rec.Results),
		ErrorCount:  len(rec.Errors),
		FinishedAt:  rec.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"status": string(rec.Status)},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}
