// Package orchestrator drives a logical flight search across multiple
// unreliable sources: fan-out with per-source deadlines, serialized
// progress updates, partial-failure aggregation, and cached filter/sort
// views.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/skyfare/flightsearch/internal/adapters"
	"github.com/skyfare/flightsearch/internal/cache"
	"github.com/skyfare/flightsearch/internal/flights"
	"github.com/skyfare/flightsearch/internal/metrics"
	"github.com/skyfare/flightsearch/internal/notify"
	"github.com/skyfare/flightsearch/internal/telemetry"
	"github.com/skyfare/flightsearch/internal/tracker"
)

const (
	defaultMaxConcurrent = 10
	defaultSourceTimeout = 30 * time.Second
	defaultCacheTTL      = 5 * time.Minute
	archiveTimeout       = 15 * time.Second
)

// Options are the orchestrator-wide defaults; callers can override them
// per search through flights.SearchOptions.
type Options struct {
	MaxConcurrentSearches int
	SourceTimeout         time.Duration
	CacheTTL              time.Duration
}

// Orchestrator composes the registry, tracker, cache, and publisher. Each
// instance owns its stores, so tests can run isolated orchestrators
// without cross-test leakage.
type Orchestrator struct {
	registry  *adapters.Registry
	tracker   *tracker.Tracker
	cache     *cache.Cache
	publisher *notify.Publisher
	archiver  flights.Archiver
	metrics   *metrics.SearchMetrics
	clock     flights.Clock
	idGen     flights.IDGenerator
	logger    *zap.Logger
	opts      Options

	mu   sync.Mutex
	meta map[string]*searchMeta
}

// searchMeta carries per-search dispatch data needed at aggregation and
// archival time but not part of the progress record.
type searchMeta struct {
	criteria flights.SearchCriteria
	sources  []string
	cacheTTL time.Duration
}

// New constructs an Orchestrator.
func New(
	registry *adapters.Registry,
	trk *tracker.Tracker,
	resultCache *cache.Cache,
	publisher *notify.Publisher,
	archiver flights.Archiver,
	m *metrics.SearchMetrics,
	clock flights.Clock,
	idGen flights.IDGenerator,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if opts.MaxConcurrentSearches <= 0 {
		opts.MaxConcurrentSearches = defaultMaxConcurrent
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = defaultSourceTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry:  registry,
		tracker:   trk,
		cache:     resultCache,
		publisher: publisher,
		archiver:  archiver,
		metrics:   m,
		clock:     clock,
		idGen:     idGen,
		logger:    logger,
		opts:      opts,
		meta:      make(map[string]*searchMeta),
	}
}

// Search validates the criteria, admits the search against the
// concurrency ceiling, fans out one task per source, and blocks until the
// search reaches a terminal state. Per-source failures are captured as
// progress data and never surface as a returned error.
func (o *Orchestrator) Search(
	ctx context.Context,
	criteria flights.SearchCriteria,
	sources []string,
	opts *flights.SearchOptions,
) (flights.SearchResult, error) {
	if err := criteria.Validate(); err != nil {
		return flights.SearchResult{}, err
	}
	resolved, err := o.resolveSources(sources)
	if err != nil {
		return flights.SearchResult{}, err
	}
	sourceTimeout, cacheTTL, maxActive := o.resolveOptions(opts)

	searchID, err := o.idGen.NewID()
	if err != nil {
		return flights.SearchResult{}, fmt.Errorf("generate search id: %w", err)
	}

	start := o.clock.Now()
	estimated := start.Add(sourceTimeout)
	if err := o.tracker.Create(searchID, resolved.ids, estimated, maxActive); err != nil {
		if errors.Is(err, flights.ErrTooManySearches) {
			o.metrics.SearchRejected()
		}
		return flights.SearchResult{}, err
	}
	o.metrics.SearchStarted()
	o.rememberMeta(searchID, criteria, resolved.ids, cacheTTL)
	defer o.forgetMeta(searchID)

	ctx, span := telemetry.Tracer().Start(ctx, "search.dispatch",
		trace.WithAttributes(
			attribute.String("search.id", searchID),
			attribute.String("search.origin", criteria.Origin),
			attribute.String("search.destination", criteria.Destination),
			attribute.Int("search.sources", len(resolved.ids)),
		))
	defer span.End()

	o.logger.Info("search dispatched",
		zap.String("search_id", searchID),
		zap.Strings("sources", resolved.ids),
		zap.Duration("source_timeout", sourceTimeout),
	)

	if snap, ok := o.tracker.Transition(searchID, flights.StatusSearching); ok {
		o.publishProgress(snap)
	}
	for _, a := range resolved.adapters {
		go o.runSource(ctx, searchID, a, criteria, sourceTimeout)
	}

	<-o.tracker.Terminal(searchID)

	final, _ := o.tracker.Get(searchID)
	elapsed := o.clock.Now().Sub(start)
	o.metrics.SearchFinished(final.Status, elapsed)
	span.SetAttributes(attribute.String("search.status", string(final.Status)))
	result := flights.SearchResult{
		SearchID:     searchID,
		Results:      final.Results,
		TotalResults: len(final.Results),
		SearchTime:   elapsed,
		Sources:      resolved.ids,
		Cached:       false,
	}
	if final.Status == flights.StatusFailed {
		return result, fmt.Errorf("search %s failed before dispatch", searchID)
	}
	return result, nil
}

type resolvedSources struct {
	ids      []string
	adapters []flights.Adapter
}

func (o *Orchestrator) resolveSources(sources []string) (resolvedSources, error) {
	ids := sources
	if len(ids) == 0 {
		ids = o.registry.IDs()
	}
	if len(ids) == 0 {
		return resolvedSources{}, flights.ErrNoSources
	}
	out := resolvedSources{ids: make([]string, 0, len(ids)), adapters: make([]flights.Adapter, 0, len(ids))}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		a, ok := o.registry.Get(id)
		if !ok {
			return resolvedSources{}, &flights.ValidationError{
				Field:  "sources",
				Reason: fmt.Sprintf("unknown source %q", id),
			}
		}
		out.ids = append(out.ids, id)
		out.adapters = append(out.adapters, a)
	}
	return out, nil
}

func (o *Orchestrator) resolveOptions(opts *flights.SearchOptions) (timeout, ttl time.Duration, maxActive int) {
	timeout = o.opts.SourceTimeout
	ttl = o.opts.CacheTTL
	maxActive = o.opts.MaxConcurrentSearches
	if opts == nil {
		return timeout, ttl, maxActive
	}
	if opts.SourceTimeout > 0 {
		timeout = opts.SourceTimeout
	}
	if opts.CacheTTL > 0 {
		ttl = opts.CacheTTL
	}
	if opts.MaxConcurrentSearches > 0 {
		maxActive = opts.MaxConcurrentSearches
	}
	return timeout, ttl, maxActive
}

// runSource executes one source task: the adapter call races the
// per-source deadline through srcCtx, and whichever settles first is fed
// into the serialized settlement path.
func (o *Orchestrator) runSource(
	ctx context.Context,
	searchID string,
	adapter flights.Adapter,
	criteria flights.SearchCriteria,
	timeout time.Duration,
) {
	srcCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	results, err := adapter.Search(srcCtx, criteria)
	latency := time.Since(started)

	settlement := tracker.Settlement{Source: adapter.ID()}
	outcome := "success"
	switch {
	case err == nil:
		settlement.Results = results
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
		settlement.Err = &flights.SourceError{
			Source:  adapter.ID(),
			Code:    flights.SourceErrorTimeout,
			Message: fmt.Sprintf("source did not answer within %s", timeout),
			At:      o.clock.Now(),
		}
	default:
		outcome = "error"
		settlement.Err = &flights.SourceError{
			Source:  adapter.ID(),
			Code:    flights.SourceErrorAdapter,
			Message: err.Error(),
			At:      o.clock.Now(),
		}
	}
	o.metrics.SourceSettled(adapter.ID(), outcome, latency)
	o.settle(searchID, settlement)
}

// settle applies one settlement. Settlements arriving after a terminal
// state are detected inside the tracker and dropped without effect.
func (o *Orchestrator) settle(searchID string, s tracker.Settlement) {
	snap, allSettled, applied := o.tracker.RecordSettlement(searchID, s)
	if !applied {
		o.logger.Debug("late settlement dropped",
			zap.String("search_id", searchID),
			zap.String("source", s.Source),
		)
		return
	}
	o.publishProgress(snap)
	if allSettled {
		o.aggregate(searchID)
	}
}

// aggregate merges the accumulated results, writes the raw cache view,
// and completes the search. It runs on whichever source goroutine settled
// last; the tracker's forward-only transitions make it race-safe against
// cancellation.
func (o *Orchestrator) aggregate(searchID string) {
	meta := o.lookupMeta(searchID)
	snap, ok := o.tracker.Transition(searchID, flights.StatusAggregating)
	if !ok {
		return
	}
	o.publishProgress(snap)

	merged := mergeResults(snap.Results)
	ttl := defaultCacheTTL
	if meta != nil {
		ttl = meta.cacheTTL
	}
	if err := o.cache.PutRaw(searchID, merged, ttl); err != nil {
		o.logger.Error("cache raw view write failed",
			zap.String("search_id", searchID), zap.Error(err))
		o.publisher.Publish(notify.Event{
			Type:     notify.EventError,
			SearchID: searchID,
			At:       o.clock.Now(),
			Data:     notify.FailedData{SearchID: searchID, Error: "result cache write failed"},
		})
	}
	o.metrics.SetCacheEntries(o.cache.Len())

	final, ok := o.tracker.CompleteWithResults(searchID, merged)
	if !ok {
		// Cancelled between aggregation start and completion; the raw
		// view is removed so filter/sort cannot observe a cancelled
		// search's aggregate.
		o.cache.Remove(searchID)
		return
	}
	if len(final.Results) == 0 {
		o.logger.Info("search completed with no flights",
			zap.String("search_id", searchID),
			zap.Int("source_errors", len(final.Errors)),
		)
	}
	o.publisher.Publish(notify.Event{
		Type:     notify.EventCompleted,
		SearchID: searchID,
		At:       o.clock.Now(),
		Data: notify.CompletedData{
			SearchID:     searchID,
			Results:      final.Results,
			TotalResults: len(final.Results),
		},
	})
	o.archive(final, meta)
}

// Cancel transitions a non-terminal search to cancelled. Idempotent:
// repeat calls and unknown IDs return false. In-flight source calls are
// not aborted; their settlements are dropped on arrival.
func (o *Orchestrator) Cancel(searchID string) bool {
	snap, ok := o.tracker.Cancel(searchID)
	if !ok {
		return false
	}
	o.logger.Info("search cancelled", zap.String("search_id", searchID))
	o.publisher.Publish(notify.Event{
		Type:     notify.EventCancelled,
		SearchID: searchID,
		At:       o.clock.Now(),
		Data:     map[string]string{"search_id": snap.SearchID},
	})
	return true
}

// Remove discards a finished search's record and cached views ahead of
// the retention sweep. Live searches must be cancelled first; Remove
// reports false for unknown or still-running searches.
func (o *Orchestrator) Remove(searchID string) bool {
	snap, ok := o.tracker.Get(searchID)
	if !ok || !snap.Status.Terminal() {
		return false
	}
	o.tracker.Delete(searchID)
	o.cache.Remove(searchID)
	o.metrics.SetCacheEntries(o.cache.Len())
	o.logger.Info("search removed", zap.String("search_id", searchID))
	return true
}

// Progress returns a snapshot of one search, or false when unknown.
func (o *Orchestrator) Progress(searchID string) (flights.Progress, bool) {
	return o.tracker.Get(searchID)
}

// ActiveSearches lists every non-terminal search.
func (o *Orchestrator) ActiveSearches() []flights.Progress {
	return o.tracker.Active()
}

func (o *Orchestrator) publishProgress(snap flights.Progress) {
	o.publisher.Publish(notify.Event{
		Type:     notify.EventProgress,
		SearchID: snap.SearchID,
		At:       o.clock.Now(),
		Data:     notify.ProgressPayload(snap),
	})
}

func (o *Orchestrator) archive(final flights.Progress, meta *searchMeta) {
	if o.archiver == nil || meta == nil {
		return
	}
	rec := flights.ArchivedSearch{
		SearchID:   final.SearchID,
		Criteria:   meta.criteria,
		Sources:    meta.sources,
		Status:     final.Status,
		Results:    final.Results,
		Errors:     final.Errors,
		StartedAt:  final.StartTime,
		FinishedAt: o.clock.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := o.archiver.ArchiveSearch(ctx, rec); err != nil {
			o.metrics.ArchiveFailed()
			o.logger.Warn("search archival failed",
				zap.String("search_id", rec.SearchID), zap.Error(err))
		}
	}()
}

func (o *Orchestrator) rememberMeta(searchID string, criteria flights.SearchCriteria, sources []string, ttl time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.meta[searchID] = &searchMeta{criteria: criteria, sources: sources, cacheTTL: ttl}
}

func (o *Orchestrator) lookupMeta(searchID string) *searchMeta {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.meta[searchID]
}

func (o *Orchestrator) forgetMeta(searchID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.meta, searchID)
}
