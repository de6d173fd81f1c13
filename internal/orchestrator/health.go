package orchestrator

import (
	"github.com/skyfare/flightsearch/internal/cache"
	"github.com/skyfare/flightsearch/internal/flights"
)

// Health status levels.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthReport summarizes service health for operators.
type HealthReport struct {
	Status         string                  `json:"status"`
	ActiveSearches int                     `json:"active_searches"`
	AdapterHealth  []flights.AdapterHealth `json:"adapter_health"`
	CacheHealth    cache.Stats             `json:"cache_health"`
}

// Health reports the current service state: healthy when every source is
// reachable, degraded while search still works with reduced coverage,
// unhealthy once the majority of sources are gone.
func (o *Orchestrator) Health() HealthReport {
	snapshot := o.registry.HealthSnapshot()
	reachable := 0
	for _, h := range snapshot {
		if h.Reachable {
			reachable++
		}
	}
	status := HealthHealthy
	total := len(snapshot)
	switch {
	case total == 0 || reachable*2 < total:
		status = HealthUnhealthy
	case reachable < total:
		status = HealthDegraded
	}
	return HealthReport{
		Status:         status,
		ActiveSearches: o.tracker.ActiveCount(),
		AdapterHealth:  snapshot,
		CacheHealth:    o.cache.Stats(),
	}
}
