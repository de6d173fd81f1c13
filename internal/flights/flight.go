package flights

import "time"

// Airline identifies a carrier by IATA code and display name.
type Airline struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Endpoint is one end of a flight leg.
type Endpoint struct {
	Airport string    `json:"airport"`
	City    string    `json:"city,omitempty"`
	Time    time.Time `json:"time"`
}

// Flight is a single bookable offer returned by a source adapter. Price is
// expressed in minor currency units so comparisons stay exact.
type Flight struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Airline      Airline  `json:"airline"`
	FlightNumber string   `json:"flight_number"`
	Departure    Endpoint `json:"departure"`
	Arrival      Endpoint `json:"arrival"`
	// DurationMinutes is normalized from the endpoint times during
	// aggregation when the adapter leaves it unset.
	DurationMinutes int     `json:"duration_minutes"`
	Stops           int     `json:"stops"`
	Price           int64   `json:"price"`
	Currency        string  `json:"currency"`
	SeatsAvailable  int     `json:"seats_available"`
	CabinClass      string  `json:"cabin_class,omitempty"`
	// Score is an opaque sort key assigned during aggregation; lower is
	// better. It is never recomputed by filter or sort calls.
	Score float64 `json:"score"`
}

// CloneFlights returns a copy of the slice so cached sets cannot be
// mutated through returned views.
func CloneFlights(src []Flight) []Flight {
	if src == nil {
		return nil
	}
	out := make([]Flight, len(src))
	copy(out, src)
	return out
}
