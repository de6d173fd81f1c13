package flights

import "time"

// Status is the lifecycle state of a search. Transitions are strictly
// forward: initializing -> searching -> aggregating -> completed/failed,
// with cancelled reachable from any non-terminal state.
type Status string

// Search lifecycle states.
const (
	StatusInitializing Status = "initializing"
	StatusSearching    Status = "searching"
	StatusAggregating  Status = "aggregating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// rank orders the forward path. Terminal states share the highest rank so
// no terminal state can replace another.
func (s Status) rank() int {
	switch s {
	case StatusInitializing:
		return 0
	case StatusSearching:
		return 1
	case StatusAggregating:
		return 2
	case StatusCompleted, StatusFailed, StatusCancelled:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next respects the
// forward-only state machine.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return next.rank() == s.rank()+1
}

// Source error codes captured in Progress.Errors.
const (
	SourceErrorTimeout = "timeout"
	SourceErrorAdapter = "adapter"
)

// SourceError describes one source's failure. It is data, not a returned
// error: per-source failures never abort the overall search.
type SourceError struct {
	Source  string    `json:"source"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Progress is a point-in-time snapshot of one search's state. Snapshots
// are value copies; mutating one never affects the tracker's record.
type Progress struct {
	SearchID            string        `json:"search_id"`
	Status              Status        `json:"status"`
	CompletedSources    []string      `json:"completed_sources"`
	TotalSources        int           `json:"total_sources"`
	Results             []Flight      `json:"results"`
	Errors              []SourceError `json:"errors"`
	StartTime           time.Time     `json:"start_time"`
	EstimatedCompletion time.Time     `json:"estimated_completion"`
}

// Fraction derives the completion ratio from the authoritative counts; it
// is never stored so it cannot diverge from them.
func (p Progress) Fraction() float64 {
	if p.TotalSources == 0 {
		return 0
	}
	return float64(len(p.CompletedSources)) / float64(p.TotalSources)
}
