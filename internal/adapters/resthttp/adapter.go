// Package resthttp implements a flight source adapter speaking a JSON
// search API over HTTP.
package resthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/skyfare/flightsearch/internal/flights"
)

// Config captures the connection parameters for one remote source.
type Config struct {
	BaseURL string
	APIKey  string
	// RPS/Burst bound the client-side request rate; zero RPS disables
	// limiting.
	RPS   float64
	Burst int
	// Timeout is the transport-level budget; the orchestrator applies
	// its own per-source deadline on top through ctx.
	Timeout time.Duration
}

// Adapter queries a remote JSON flight API. Retry policy is the remote
// contract's concern; this adapter performs exactly one attempt per call.
type Adapter struct {
	id      string
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// New constructs a REST Adapter.
func New(id string, cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return &Adapter{
		id:      id,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}, nil
}

// ID returns the source identifier.
func (a *Adapter) ID() string {
	return a.id
}

type searchRequest struct {
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DepartureDate string  `json:"departure_date"`
	ReturnDate    *string `json:"return_date,omitempty"`
	Passengers    int     `json:"passengers"`
	CabinClass    string  `json:"cabin_class,omitempty"`
}

type searchResponse struct {
	Flights []flights.Flight `json:"flights"`
}

// Search posts the criteria to the source's /search endpoint and decodes
// the offer list. Context deadlines surface as the context error so the
// orchestrator can classify timeouts.
func (a *Adapter) Search(ctx context.Context, criteria flights.SearchCriteria) ([]flights.Flight, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	payload := searchRequest{
		Origin:        criteria.Origin,
		Destination:   criteria.Destination,
		DepartureDate: criteria.DepartureDate.UTC().Format("2006-01-02"),
		Passengers:    criteria.Passengers,
		CabinClass:    criteria.CabinClass,
	}
	if criteria.ReturnDate != nil {
		rd := criteria.ReturnDate.UTC().Format("2006-01-02")
		payload.ReturnDate = &rd
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal criteria: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// Surface deadline errors undecorated so callers can classify
		// them with errors.Is.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &flights.AdapterError{Source: a.id, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &flights.AdapterError{
			Source: a.id,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &flights.AdapterError{Source: a.id, Err: fmt.Errorf("decode response: %w", err)}
	}
	out := decoded.Flights
	for i := range out {
		out[i].Source = a.id
	}
	return out, nil
}

// Health issues a GET /health and measures round-trip latency.
func (a *Adapter) Health(ctx context.Context) flights.AdapterHealth {
	h := flights.AdapterHealth{Source: a.id, CheckedAt: time.Now().UTC()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/health", nil)
	if err != nil {
		return h
	}
	start := time.Now()
	resp, err := a.client.Do(req)
	h.Latency = time.Since(start)
	if err != nil {
		return h
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	h.Reachable = resp.StatusCode == http.StatusOK
	return h
}
