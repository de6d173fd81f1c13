// Package synthetic provides a deterministic in-process flight source for
// development and tests.
package synthetic

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/skyfare/flightsearch/internal/flights"
)

// Config controls the generated offer set.
type Config struct {
	// Seed perturbs the per-criteria RNG so two synthetic sources do not
	// return identical inventories.
	Seed int64
	// Latency is the simulated source response time.
	Latency time.Duration
	// MinFlights/MaxFlights bound the generated result count.
	MinFlights int
	MaxFlights int
	// Err, when set, makes every Search call fail with it.
	Err error
}

var airlines = []flights.Airline{
	{Code: "GA", Name: "Garuda Indonesia"},
	{Code: "SQ", Name: "Singapore Airlines"},
	{Code: "QZ", Name: "AirAsia"},
	{Code: "ID", Name: "Batik Air"},
	{Code: "JT", Name: "Lion Air"},
}

// Adapter generates deterministic flights from the search criteria: the
// same criteria always yield the same inventory for a given source.
type Adapter struct {
	id  string
	cfg Config
}

// New constructs a synthetic Adapter.
func New(id string, cfg Config) *Adapter {
	if cfg.MinFlights <= 0 {
		cfg.MinFlights = 3
	}
	if cfg.MaxFlights < cfg.MinFlights {
		cfg.MaxFlights = cfg.MinFlights + 5
	}
	return &Adapter{id: id, cfg: cfg}
}

// ID returns the source identifier.
func (a *Adapter) ID() string {
	return a.id
}

// Search generates the inventory after the configured latency, honoring
// ctx cancellation.
func (a *Adapter) Search(ctx context.Context, criteria flights.SearchCriteria) ([]flights.Flight, error) {
	if a.cfg.Latency > 0 {
		timer := time.NewTimer(a.cfg.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.cfg.Err != nil {
		return nil, &flights.AdapterError{Source: a.id, Err: a.cfg.Err}
	}

	rng := rand.New(rand.NewSource(a.seedFor(criteria)))
	count := a.cfg.MinFlights + rng.Intn(a.cfg.MaxFlights-a.cfg.MinFlights+1)
	out := make([]flights.Flight, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, a.generate(rng, criteria, i))
	}
	return out, nil
}

// Health always reports reachable with a token latency.
func (a *Adapter) Health(context.Context) flights.AdapterHealth {
	reachable := a.cfg.Err == nil
	return flights.AdapterHealth{
		Source:    a.id,
		Reachable: reachable,
		Latency:   a.cfg.Latency,
		CheckedAt: time.Now().UTC(),
	}
}

func (a *Adapter) seedFor(c flights.SearchCriteria) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d|%s",
		a.id, c.Origin, c.Destination,
		c.DepartureDate.UTC().Format("2006-01-02"),
		c.Passengers, c.CabinClass,
	)
	return a.cfg.Seed ^ int64(h.Sum64())
}

func (a *Adapter) generate(rng *rand.Rand, c flights.SearchCriteria, n int) flights.Flight {
	airline := airlines[rng.Intn(len(airlines))]
	depart := time.Date(
		c.DepartureDate.Year(), c.DepartureDate.Month(), c.DepartureDate.Day(),
		5+rng.Intn(17), 5*rng.Intn(12), 0, 0, time.UTC,
	)
	durationMin := 60 + rng.Intn(600)
	stops := rng.Intn(3)
	price := int64(5000 + rng.Intn(95000))
	cabin := c.CabinClass
	if cabin == "" {
		cabin = "economy"
	}
	return flights.Flight{
		ID:              fmt.Sprintf("%s-%s%03d-%d", a.id, airline.Code, 100+rng.Intn(900), n),
		Source:          a.id,
		Airline:         airline,
		FlightNumber:    fmt.Sprintf("%s%d", airline.Code, 100+rng.Intn(900)),
		Departure:       flights.Endpoint{Airport: c.Origin, Time: depart},
		Arrival:         flights.Endpoint{Airport: c.Destination, Time: depart.Add(time.Duration(durationMin) * time.Minute)},
		DurationMinutes: durationMin,
		Stops:           stops,
		Price:           price,
		Currency:        "USD",
		SeatsAvailable:  1 + rng.Intn(9),
		CabinClass:      cabin,
	}
}
