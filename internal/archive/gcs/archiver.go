// Package gcs archives completed searches as JSON objects in a Google
// Cloud Storage bucket.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/skyfare/flightsearch/internal/flights"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Archiver writes one object per terminal search.
type Archiver struct {
	client *storage.Client
	cfg    Config
}

// New creates a GCS-backed archiver.
func New(client *storage.Client, cfg Config) (*Archiver, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Archiver{client: client, cfg: cfg}, nil
}

// ArchiveSearch uploads the record as JSON under
// <prefix>/<search_id>.json.
func (a *Archiver) ArchiveSearch(ctx context.Context, rec flights.ArchivedSearch) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal archive record: %w", err)
	}
	path := a.objectPath(rec.SearchID)
	writer := a.client.Bucket(a.cfg.Bucket).Object(path).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func (a *Archiver) objectPath(searchID string) string {
	prefix := strings.Trim(a.cfg.Prefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s.json", searchID)
	}
	return fmt.Sprintf("%s/%s.json", prefix, searchID)
}
