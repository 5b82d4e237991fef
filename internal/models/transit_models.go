package models

import (
	"busesareus.org/internal/geo"
)

// Stop represents a physical transit stop, identified by its public stop number.
// Routes holds the routes serving the stop, in the order they were linked.
type Stop struct {
	Number   int
	Name     string
	Location geo.LatLon
	Routes   []*Route
}

// NewStop creates a stop without any routes.
func NewStop(number int, name string, location geo.LatLon) *Stop {
	return &Stop{
		Number:   number,
		Name:     name,
		Location: location,
	}
}

// AddRoute links r to the stop. Adding the same route twice is a no-op; two
// routes that only share a number are both linked.
func (s *Stop) AddRoute(r *Route) {
	for _, existing := range s.Routes {
		if existing.ID == r.ID {
			return
		}
	}
	s.Routes = append(s.Routes, r)
}

// HasRoute reports whether a route with the given number serves the stop.
func (s *Stop) HasRoute(number string) bool {
	for _, r := range s.Routes {
		if r.Number == number {
			return true
		}
	}
	return false
}

// Route is a transit route. Number is the public route number ("099", "R4")
// and ID the identifier used by feeds, which may differ from the number.
// Color is an optional "#RRGGBB" color supplied by the data source.
type Route struct {
	ID       string
	Number   string
	Name     string
	Color    string
	Patterns []*RoutePattern
}

// NewRoute creates a route without patterns.
func NewRoute(number, name string) *Route {
	return &Route{ID: number, Number: number, Name: name}
}

// Pattern returns the pattern with the given name, or nil.
func (r *Route) Pattern(name string) *RoutePattern {
	for _, p := range r.Patterns {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// AddPattern adds p to the route unless a pattern with the same name exists.
// It returns the pattern stored on the route.
func (r *Route) AddPattern(p *RoutePattern) *RoutePattern {
	if existing := r.Pattern(p.Name); existing != nil {
		return existing
	}
	r.Patterns = append(r.Patterns, p)
	return p
}

// RoutePattern is one path a route follows, as an ordered polyline. Direction
// is the GTFS direction_id ("0" or "1"), empty when the feed omits it.
type RoutePattern struct {
	Name        string
	Destination string
	Direction   string
	Path        []geo.LatLon
}

// Bus is a vehicle location reported by a bus location provider.
type Bus struct {
	VehicleNo    string     `json:"vehicle_no"`
	RouteNo      string     `json:"route_no"`
	Direction    string     `json:"direction,omitempty"`
	Destination  string     `json:"destination,omitempty"`
	Pattern      string     `json:"pattern,omitempty"`
	Location     geo.LatLon `json:"location"`
	RecordedTime string     `json:"recorded_time,omitempty"`
}
