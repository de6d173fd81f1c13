package api

import (
	"fmt"
	"time"

	"github.com/skyfare/flightsearch/internal/flights"
)

const dateLayout = "2006-01-02"

type searchRequest struct {
	Origin        string         `json:"origin"`
	Destination   string         `json:"destination"`
	DepartureDate string         `json:"departure_date"`
	ReturnDate    string         `json:"return_date,omitempty"`
	Passengers    int            `json:"passengers"`
	CabinClass    string         `json:"cabin_class,omitempty"`
	Sources       []string       `json:"sources,omitempty"`
	Options       *searchOptions `json:"options,omitempty"`
}

type searchOptions struct {
	SourceTimeoutSeconds int `json:"source_timeout_seconds,omitempty"`
	CacheTTLSeconds      int `json:"cache_ttl_seconds,omitempty"`
}

func (r searchRequest) toDomain() (flights.SearchCriteria, *flights.SearchOptions, error) {
	criteria := flights.SearchCriteria{
		Origin:      r.Origin,
		Destination: r.Destination,
		Passengers:  r.Passengers,
		CabinClass:  r.CabinClass,
	}
	if r.DepartureDate != "" {
		d, err := time.Parse(dateLayout, r.DepartureDate)
		if err != nil {
			return criteria, nil, fmt.Errorf("departure_date: expected YYYY-MM-DD")
		}
		criteria.DepartureDate = d
	}
	if r.ReturnDate != "" {
		d, err := time.Parse(dateLayout, r.ReturnDate)
		if err != nil {
			return criteria, nil, fmt.Errorf("return_date: expected YYYY-MM-DD")
		}
		criteria.ReturnDate = &d
	}
	var opts *flights.SearchOptions
	if r.Options != nil {
		opts = &flights.SearchOptions{
			SourceTimeout: time.Duration(r.Options.SourceTimeoutSeconds) * time.Second,
			CacheTTL:      time.Duration(r.Options.CacheTTLSeconds) * time.Second,
		}
	}
	return criteria, opts, nil
}

type filterRequest struct {
	PriceMin        *int64   `json:"price_min,omitempty"`
	PriceMax        *int64   `json:"price_max,omitempty"`
	Airlines        []string `json:"airlines,omitempty"`
	MaxStops        *int     `json:"max_stops,omitempty"`
	DurationMin     *int     `json:"duration_min,omitempty"`
	DurationMax     *int     `json:"duration_max,omitempty"`
	DepartureAfter  string   `json:"departure_after,omitempty"`
	DepartureBefore string   `json:"departure_before,omitempty"`
}

func (r filterRequest) toDomain() flights.Filters {
	f := flights.Filters{
		PriceMin:    r.PriceMin,
		PriceMax:    r.PriceMax,
		Airlines:    r.Airlines,
		MaxStops:    r.MaxStops,
		DurationMin: r.DurationMin,
		DurationMax: r.DurationMax,
	}
	if t, err := time.Parse(time.RFC3339, r.DepartureAfter); err == nil && r.DepartureAfter != "" {
		f.DepartureAfter = &t
	}
	if t, err := time.Parse(time.RFC3339, r.DepartureBefore); err == nil && r.DepartureBefore != "" {
		f.DepartureBefore = &t
	}
	return f
}

type sortRequest struct {
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

type searchResponse struct {
	SearchID     string           `json:"search_id"`
	Results      []flights.Flight `json:"results"`
	TotalResults int              `json:"total_results"`
	SearchTimeMS int64            `json:"search_time_ms"`
	Sources      []string         `json:"sources"`
	Cached       bool             `json:"cached"`
}

func toSearchResponse(res flights.SearchResult) searchResponse {
	if res.Results == nil {
		res.Results = []flights.Flight{}
	}
	return searchResponse{
		SearchID:     res.SearchID,
		Results:      res.Results,
		TotalResults: res.TotalResults,
		SearchTimeMS: res.SearchTime.Milliseconds(),
		Sources:      res.Sources,
		Cached:       res.Cached,
	}
}

type progressDTO struct {
	SearchID            string                `json:"search_id"`
	Status              flights.Status        `json:"status"`
	CompletedSources    []string              `json:"completed_sources"`
	TotalSources        int                   `json:"total_sources"`
	Fraction            float64               `json:"fraction"`
	ResultCount         int                   `json:"result_count"`
	Errors              []flights.SourceError `json:"errors"`
	StartTime           time.Time             `json:"start_time"`
	EstimatedCompletion time.Time             `json:"estimated_completion"`
}

func toProgressDTO(p flights.Progress) progressDTO {
	if p.CompletedSources == nil {
		p.CompletedSources = []string{}
	}
	if p.Errors == nil {
		p.Errors = []flights.SourceError{}
	}
	return progressDTO{
		SearchID:            p.SearchID,
		Status:              p.Status,
		CompletedSources:    p.CompletedSources,
		TotalSources:        p.TotalSources,
		Fraction:            p.Fraction(),
		ResultCount:         len(p.Results),
		Errors:              p.Errors,
		StartTime:           p.StartTime,
		EstimatedCompletion: p.EstimatedCompletion,
	}
}

func toProgressDTOs(ps []flights.Progress) []progressDTO {
	out := make([]progressDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProgressDTO(p))
	}
	return out
}
