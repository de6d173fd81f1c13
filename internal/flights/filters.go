package flights

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// Filters is the fixed set of recognized result predicates. All set fields
// are AND-combined; nil fields do not constrain.
type Filters struct {
	PriceMin        *int64     `json:"price_min,omitempty"`
	PriceMax        *int64     `json:"price_max,omitempty"`
	Airlines        []string   `json:"airlines,omitempty"`
	MaxStops        *int       `json:"max_stops,omitempty"`
	DurationMin     *int       `json:"duration_min,omitempty"`
	DurationMax     *int       `json:"duration_max,omitempty"`
	DepartureAfter  *time.Time `json:"departure_after,omitempty"`
	DepartureBefore *time.Time `json:"departure_before,omitempty"`
}

// Match reports whether f passes every set predicate.
func (fl Filters) Match(f Flight) bool {
	if fl.PriceMin != nil && f.Price < *fl.PriceMin {
		return false
	}
	if fl.PriceMax != nil && f.Price > *fl.PriceMax {
		return false
	}
	if fl.MaxStops != nil && f.Stops > *fl.MaxStops {
		return false
	}
	if fl.DurationMin != nil && f.DurationMinutes < *fl.DurationMin {
		return false
	}
	if fl.DurationMax != nil && f.DurationMinutes > *fl.DurationMax {
		return false
	}
	if fl.DepartureAfter != nil && f.Departure.Time.Before(*fl.DepartureAfter) {
		return false
	}
	if fl.DepartureBefore != nil && f.Departure.Time.After(*fl.DepartureBefore) {
		return false
	}
	if len(fl.Airlines) > 0 && !fl.matchAirline(f.Airline) {
		return false
	}
	return true
}

func (fl Filters) matchAirline(a Airline) bool {
	for _, want := range fl.Airlines {
		w := strings.ToLower(strings.TrimSpace(want))
		if w == "" {
			continue
		}
		if strings.ToLower(a.Code) == w || strings.ToLower(a.Name) == w {
			return true
		}
	}
	return false
}

// Apply returns the subset of src passing the filter, in input order.
func (fl Filters) Apply(src []Flight) []Flight {
	out := make([]Flight, 0, len(src))
	for _, f := range src {
		if fl.Match(f) {
			out = append(out, f)
		}
	}
	return out
}

// Hash returns a deterministic key for the filter parameters, used to key
// derived cache views. Field order and airline order do not affect it.
func (fl Filters) Hash() string {
	var b strings.Builder
	writeInt64 := func(name string, v *int64) {
		if v != nil {
			fmt.Fprintf(&b, "%s=%d;", name, *v)
		}
	}
	writeInt := func(name string, v *int) {
		if v != nil {
			fmt.Fprintf(&b, "%s=%d;", name, *v)
		}
	}
	writeTime := func(name string, v *time.Time) {
		if v != nil {
			fmt.Fprintf(&b, "%s=%d;", name, v.UTC().UnixNano())
		}
	}
	writeInt64("pmin", fl.PriceMin)
	writeInt64("pmax", fl.PriceMax)
	writeInt("stops", fl.MaxStops)
	writeInt("dmin", fl.DurationMin)
	writeInt("dmax", fl.DurationMax)
	writeTime("da", fl.DepartureAfter)
	writeTime("db", fl.DepartureBefore)
	if len(fl.Airlines) > 0 {
		normalized := make([]string, 0, len(fl.Airlines))
		for _, a := range fl.Airlines {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				normalized = append(normalized, a)
			}
		}
		sort.Strings(normalized)
		fmt.Fprintf(&b, "air=%s;", strings.Join(normalized, ","))
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(b.String()))
	return fmt.Sprintf("f:%016x", h.Sum64())
}
