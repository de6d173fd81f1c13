// Package adapters manages the set of external flight sources and their
// last known health.
package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/skyfare/flightsearch/internal/flights"
)

// Registry holds one capability-uniform adapter per external source plus
// the most recent health snapshot for each. Health snapshots are refreshed
// by Probe, not by searches.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]flights.Adapter
	health   map[string]flights.AdapterHealth
	logger   *zap.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		adapters: make(map[string]flights.Adapter),
		health:   make(map[string]flights.AdapterHealth),
		logger:   logger,
	}
}

// Register adds an adapter under its own ID. Duplicate IDs are rejected.
func (r *Registry) Register(a flights.Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter is required")
	}
	id := a.ID()
	if id == "" {
		return fmt.Errorf("adapter id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("adapter %q already registered", id)
	}
	r.adapters[id] = a
	// Sources start optimistically reachable until the first probe.
	r.health[id] = flights.AdapterHealth{Source: id, Reachable: true}
	return nil
}

// Get returns the adapter for a source ID.
func (r *Registry) Get(id string) (flights.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns all registered source IDs in lexicographic order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// HealthSnapshot returns the latest health for every source, ordered by
// source ID.
func (r *Registry) HealthSnapshot() []flights.AdapterHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]flights.AdapterHealth, 0, len(r.health))
	for _, h := range r.health {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Probe refreshes every source's health snapshot. Probes run concurrently
// and each failure only marks its own source unreachable.
func (r *Registry) Probe(ctx context.Context) {
	r.mu.RLock()
	targets := make([]flights.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		targets = append(targets, a)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, a := range targets {
		wg.Add(1)
		go func(a flights.Adapter) {
			defer wg.Done()
			h := a.Health(ctx)
			h.Source = a.ID()
			r.mu.Lock()
			r.health[a.ID()] = h
			r.mu.Unlock()
			if !h.Reachable {
				r.logger.Warn("source unreachable", zap.String("source", a.ID()))
			}
		}(a)
	}
	wg.Wait()
}
