package orchestrator

import (
	"fmt"
	"strings"

	"github.com/skyfare/flightsearch/internal/flights"
	"github.com/skyfare/flightsearch/internal/notify"
)

// FilterResults applies the AND-combination of the given predicates over
// the raw cached view and stores the outcome as a derived view. No source
// is ever contacted; Cached is true on the returned result.
func (o *Orchestrator) FilterResults(searchID string, filters flights.Filters) (flights.SearchResult, error) {
	raw, ok := o.cache.GetRaw(searchID)
	if !ok {
		o.publishNotFound(searchID)
		return flights.SearchResult{}, flights.ErrNotFound
	}
	filtered := filters.Apply(raw)
	if err := o.cache.PutDerived(searchID, filters.Hash(), filtered); err != nil {
		return flights.SearchResult{}, err
	}
	o.publisher.Publish(notify.Event{
		Type:     notify.EventFiltered,
		SearchID: searchID,
		At:       o.clock.Now(),
		Data: notify.FilteredData{
			SearchID:      searchID,
			Filters:       filters,
			OriginalCount: len(raw),
			FilteredCount: len(filtered),
			Results:       filtered,
		},
	})
	return flights.SearchResult{
		SearchID:     searchID,
		Results:      filtered,
		TotalResults: len(filtered),
		Sources:      o.sourcesFor(searchID),
		Cached:       true,
	}, nil
}

// SortResults stable-sorts the most recently derived view (or the raw
// view when none exists) and stores the ordering as a derived view.
func (o *Orchestrator) SortResults(searchID, sortBy, sortOrder string) (flights.SearchResult, error) {
	key, ok := flights.ParseSortKey(sortBy)
	if !ok {
		return flights.SearchResult{}, &flights.ValidationError{
			Field:  "sort_by",
			Reason: fmt.Sprintf("unknown sort key %q", sortBy),
		}
	}
	order, ok := flights.ParseSortOrder(sortOrder)
	if !ok {
		return flights.SearchResult{}, &flights.ValidationError{
			Field:  "sort_order",
			Reason: fmt.Sprintf("unknown sort order %q", sortOrder),
		}
	}
	view, found := o.cache.Latest(searchID)
	if !found {
		o.publishNotFound(searchID)
		return flights.SearchResult{}, flights.ErrNotFound
	}
	sorted := flights.SortFlights(view, key, order)
	derivedKey := fmt.Sprintf("s:%s:%s", key, order)
	if err := o.cache.PutDerived(searchID, derivedKey, sorted); err != nil {
		return flights.SearchResult{}, err
	}
	o.publisher.Publish(notify.Event{
		Type:     notify.EventSorted,
		SearchID: searchID,
		At:       o.clock.Now(),
		Data: notify.SortedData{
			SearchID:  searchID,
			SortBy:    key,
			SortOrder: order,
			Results:   sorted,
		},
	})
	return flights.SearchResult{
		SearchID:     searchID,
		Results:      sorted,
		TotalResults: len(sorted),
		Sources:      o.sourcesFor(searchID),
		Cached:       true,
	}, nil
}

func (o *Orchestrator) publishNotFound(searchID string) {
	o.publisher.Publish(notify.Event{
		Type:     notify.EventNotFound,
		SearchID: searchID,
		At:       o.clock.Now(),
		Data:     map[string]string{"search_id": searchID},
	})
}

// sourcesFor recovers the requested source set from the progress record
// when it is still retained.
func (o *Orchestrator) sourcesFor(searchID string) []string {
	snap, ok := o.tracker.Get(searchID)
	if !ok {
		return nil
	}
	return snap.CompletedSources
}

// mergeResults post-processes the accumulated settlements into the raw
// view: durations are normalized from endpoint times, duplicate legs
// across sources collapse to the cheapest offer, a value score is
// assigned, and the set is default-sorted by price with the deterministic
// tie-break.
func mergeResults(acc []flights.Flight) []flights.Flight {
	merged := normalizeDurations(flights.CloneFlights(acc))
	merged = dedupCheapest(merged)
	applyScore(merged)
	return flights.SortFlights(merged, flights.SortByPrice, flights.SortAscending)
}

func normalizeDurations(in []flights.Flight) []flights.Flight {
	for i := range in {
		if in[i].DurationMinutes > 0 {
			continue
		}
		dep, arr := in[i].Departure.Time, in[i].Arrival.Time
		if !dep.IsZero() && arr.After(dep) {
			in[i].DurationMinutes = int(arr.Sub(dep).Minutes())
		}
	}
	return in
}

// dedupCheapest collapses offers for the same physical leg, keeping the
// cheapest; equal prices resolve by source ID so the outcome is stable.
func dedupCheapest(in []flights.Flight) []flights.Flight {
	best := make(map[string]flights.Flight, len(in))
	order := make([]string, 0, len(in))
	for _, f := range in {
		key := legKey(f)
		current, seen := best[key]
		if !seen {
			best[key] = f
			order = append(order, key)
			continue
		}
		if f.Price < current.Price || (f.Price == current.Price && f.Source < current.Source) {
			best[key] = f
		}
	}
	out := make([]flights.Flight, 0, len(best))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func legKey(f flights.Flight) string {
	return strings.ToLower(strings.Join([]string{
		f.Airline.Code,
		f.FlightNumber,
		f.Departure.Airport,
		f.Arrival.Airport,
		f.Departure.Time.UTC().Format("2006-01-02T15:04"),
	}, "|"))
}

// applyScore assigns the opaque value score: price and duration each
// normalized to [0,1] over the merged set, weighted 60/40. Lower is
// better.
func applyScore(in []flights.Flight) {
	if len(in) == 0 {
		return
	}
	minP, maxP := in[0].Price, in[0].Price
	minD, maxD := in[0].DurationMinutes, in[0].DurationMinutes
	for _, f := range in[1:] {
		if f.Price < minP {
			minP = f.Price
		}
		if f.Price > maxP {
			maxP = f.Price
		}
		if f.DurationMinutes < minD {
			minD = f.DurationMinutes
		}
		if f.DurationMinutes > maxD {
			maxD = f.DurationMinutes
		}
	}
	priceRange := float64(maxP - minP)
	durationRange := float64(maxD - minD)
	if priceRange == 0 {
		priceRange = 1
	}
	if durationRange == 0 {
		durationRange = 1
	}
	for i := range in {
		priceScore := float64(in[i].Price-minP) / priceRange
		durationScore := float64(in[i].DurationMinutes-minD) / durationRange
		in[i].Score = priceScore*0.6 + durationScore*0.4
	}
}
