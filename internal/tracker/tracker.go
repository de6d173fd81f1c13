// Package tracker owns per-search progress state. All mutations for a
// given search ID are serialized through the record's own mutex, so
// concurrent settlement callbacks cannot interleave; reads return value
// snapshots.
package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/skyfare/flightsearch/internal/flights"
)

// Tracker is the single-writer-per-key store of SearchProgress records.
// It is shared by all concurrent searches in one orchestrator instance.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*record
	clock   flights.Clock
}

type record struct {
	mu        sync.Mutex
	progress  flights.Progress
	completed map[string]struct{}
	requested map[string]struct{}
	// terminal closes exactly once when the record reaches a terminal
	// status, waking any goroutine blocked in Wait.
	terminal   chan struct{}
	finishedAt time.Time
}

// New constructs a Tracker.
func New(clock flights.Clock) *Tracker {
	return &Tracker{
		records: make(map[string]*record),
		clock:   clock,
	}
}

// Create registers a new search in initializing state. When maxActive > 0
// and the number of non-terminal searches has already reached it, no
// record is created and flights.ErrTooManySearches is returned; admission
// and creation are atomic under the store lock so concurrent submissions
// cannot overshoot the ceiling.
func (t *Tracker) Create(searchID string, sources []string, estimated time.Time, maxActive int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.records[searchID]; exists {
		return flights.ErrDuplicateSearch
	}
	if maxActive > 0 && t.activeLocked() >= maxActive {
		return flights.ErrTooManySearches
	}
	requested := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		requested[s] = struct{}{}
	}
	t.records[searchID] = &record{
		progress: flights.Progress{
			SearchID:            searchID,
			Status:              flights.StatusInitializing,
			TotalSources:        len(sources),
			StartTime:           t.clock.Now(),
			EstimatedCompletion: estimated,
		},
		completed: make(map[string]struct{}, len(sources)),
		requested: requested,
		terminal:  make(chan struct{}),
	}
	return nil
}

// Transition advances the search to the next status. Terminal records and
// backward moves are rejected; the returned snapshot reflects the state
// after a successful transition.
func (t *Tracker) Transition(searchID string, next flights.Status) (flights.Progress, bool) {
	rec, ok := t.get(searchID)
	if !ok {
		return flights.Progress{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.progress.Status.CanTransition(next) {
		return flights.Progress{}, false
	}
	rec.setStatusLocked(next, t.clock.Now())
	return rec.snapshotLocked(), true
}

// Settlement is the outcome of one source task, applied through
// RecordSettlement.
type Settlement struct {
	Source  string
	Results []flights.Flight
	Err     *flights.SourceError
}

// RecordSettlement applies one source's outcome. The settlement is
// dropped (applied=false) when the record is unknown, already terminal,
// the source was not requested, or the source already settled. When every
// requested source has settled, allSettled is true.
func (t *Tracker) RecordSettlement(searchID string, s Settlement) (snap flights.Progress, allSettled, applied bool) {
	rec, ok := t.get(searchID)
	if !ok {
		return flights.Progress{}, false, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.progress.Status.Terminal() {
		return flights.Progress{}, false, false
	}
	if _, requested := rec.requested[s.Source]; !requested {
		return flights.Progress{}, false, false
	}
	if _, done := rec.completed[s.Source]; done {
		return flights.Progress{}, false, false
	}
	rec.completed[s.Source] = struct{}{}
	rec.progress.Results = append(rec.progress.Results, s.Results...)
	if s.Err != nil {
		rec.progress.Errors = append(rec.progress.Errors, *s.Err)
	}
	return rec.snapshotLocked(), len(rec.completed) == len(rec.requested), true
}

// CompleteWithResults transitions an aggregating search to completed and
// replaces the accumulated results with the merged, default-sorted set.
func (t *Tracker) CompleteWithResults(searchID string, merged []flights.Flight) (flights.Progress, bool) {
	rec, ok := t.get(searchID)
	if !ok {
		return flights.Progress{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.progress.Status.CanTransition(flights.StatusCompleted) {
		return flights.Progress{}, false
	}
	rec.progress.Results = flights.CloneFlights(merged)
	rec.setStatusLocked(flights.StatusCompleted, t.clock.Now())
	return rec.snapshotLocked(), true
}

// Fail marks a search failed before any source settled. It is reserved
// for total dispatch failure; per-source errors never use this path.
func (t *Tracker) Fail(searchID string, cause flights.SourceError) (flights.Progress, bool) {
	rec, ok := t.get(searchID)
	if !ok {
		return flights.Progress{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.progress.Status.Terminal() {
		return flights.Progress{}, false
	}
	rec.progress.Errors = append(rec.progress.Errors, cause)
	rec.setStatusLocked(flights.StatusFailed, t.clock.Now())
	return rec.snapshotLocked(), true
}

// Cancel transitions a non-terminal search to cancelled. It is
// idempotent: only the first call on a live search returns true.
func (t *Tracker) Cancel(searchID string) (flights.Progress, bool) {
	rec, ok := t.get(searchID)
	if !ok {
		return flights.Progress{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.progress.Status.Terminal() {
		return flights.Progress{}, false
	}
	rec.setStatusLocked(flights.StatusCancelled, t.clock.Now())
	return rec.snapshotLocked(), true
}

// Get returns a snapshot of one search's progress.
func (t *Tracker) Get(searchID string) (flights.Progress, bool) {
	rec, ok := t.get(searchID)
	if !ok {
		return flights.Progress{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshotLocked(), true
}

// Terminal returns a channel closed when the search reaches a terminal
// state. Unknown IDs get an already-closed channel.
func (t *Tracker) Terminal(searchID string) <-chan struct{} {
	rec, ok := t.get(searchID)
	if !ok {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return rec.terminal
}

// Active returns snapshots of every non-terminal search.
func (t *Tracker) Active() []flights.Progress {
	t.mu.RLock()
	recs := make([]*record, 0, len(t.records))
	for _, rec := range t.records {
		recs = append(recs, rec)
	}
	t.mu.RUnlock()

	out := make([]flights.Progress, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if !rec.progress.Status.Terminal() {
			out = append(out, rec.snapshotLocked())
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SearchID < out[j].SearchID })
	return out
}

// ActiveCount returns the number of non-terminal searches.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeLocked()
}

// Sweep evicts terminal records older than the retention window and
// returns how many were removed.
func (t *Tracker) Sweep(retention time.Duration) int {
	cutoff := t.clock.Now().Add(-retention)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, rec := range t.records {
		rec.mu.Lock()
		expired := rec.progress.Status.Terminal() && rec.finishedAt.Before(cutoff)
		rec.mu.Unlock()
		if expired {
			delete(t.records, id)
			removed++
		}
	}
	return removed
}

// Delete removes a record regardless of state.
func (t *Tracker) Delete(searchID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, searchID)
}

func (t *Tracker) get(searchID string) (*record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[searchID]
	return rec, ok
}

// activeLocked requires t.mu held. Status is written under the record
// mutex, so each record is locked for the read; the t.mu -> rec.mu
// ordering matches Sweep.
func (t *Tracker) activeLocked() int {
	n := 0
	for _, rec := range t.records {
		rec.mu.Lock()
		terminal := rec.progress.Status.Terminal()
		rec.mu.Unlock()
		if !terminal {
			n++
		}
	}
	return n
}

func (r *record) setStatusLocked(next flights.Status, now time.Time) {
	r.progress.Status = next
	if next.Terminal() {
		r.finishedAt = now
		close(r.terminal)
	}
}

func (r *record) snapshotLocked() flights.Progress {
	snap := r.progress
	snap.Results = flights.CloneFlights(r.progress.Results)
	if r.progress.Errors != nil {
		snap.Errors = make([]flights.SourceError, len(r.progress.Errors))
		copy(snap.Errors, r.progress.Errors)
	}
	snap.CompletedSources = make([]string, 0, len(r.completed))
	for s := range r.completed {
		snap.CompletedSources = append(snap.CompletedSources, s)
	}
	sort.Strings(snap.CompletedSources)
	return snap
}
