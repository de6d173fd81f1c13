package flights

import (
	"sort"
	"strings"
)

// SortKey selects the primary ordering field for sorted views.
type SortKey string

// Recognized sort keys.
const (
	SortByPrice    SortKey = "price"
	SortByDuration SortKey = "duration"
	SortByScore    SortKey = "score"
)

// SortOrder selects ascending or descending order.
type SortOrder string

// Recognized sort orders.
const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// ParseSortKey normalizes a sort key, defaulting to price.
func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return SortByPrice, true
	case SortByPrice:
		return SortByPrice, true
	case SortByDuration:
		return SortByDuration, true
	case SortByScore:
		return SortByScore, true
	default:
		return "", false
	}
}

// ParseSortOrder normalizes a sort order, defaulting to ascending.
func ParseSortOrder(s string) (SortOrder, bool) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return SortAscending, true
	case SortAscending:
		return SortAscending, true
	case SortDescending:
		return SortDescending, true
	default:
		return "", false
	}
}

// SortFlights stable-sorts a copy of src by the given key and order. Equal
// primary keys fall back to price ascending, then duration ascending, then
// source identifier, so ordering is reproducible across repeated calls.
func SortFlights(src []Flight, key SortKey, order SortOrder) []Flight {
	out := CloneFlights(src)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := compareByKey(a, b, key); c != 0 {
			if order == SortDescending {
				return c > 0
			}
			return c < 0
		}
		return tieBreak(a, b)
	})
	return out
}

func compareByKey(a, b Flight, key SortKey) int {
	switch key {
	case SortByDuration:
		return a.DurationMinutes - b.DurationMinutes
	case SortByScore:
		switch {
		case a.Score < b.Score:
			return -1
		case a.Score > b.Score:
			return 1
		default:
			return 0
		}
	default:
		switch {
		case a.Price < b.Price:
			return -1
		case a.Price > b.Price:
			return 1
		default:
			return 0
		}
	}
}

// tieBreak orders equal primary keys: price asc, duration asc, source id.
func tieBreak(a, b Flight) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if a.DurationMinutes != b.DurationMinutes {
		return a.DurationMinutes < b.DurationMinutes
	}
	return a.Source < b.Source
}
