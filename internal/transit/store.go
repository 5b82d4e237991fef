package transit

import (
	"errors"
	"fmt"
	"sync"

	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
)

// ErrStopNotFound is returned when a stop number is unknown to the store.
var ErrStopNotFound = errors.New("stop not found")

// Store is a thread-safe in-memory registry of stops and routes together with
// the currently selected stop. It is owned by the application and passed to the
// selector and search functions explicitly.
//
// Stops and routes are treated as immutable once added: loaders build complete
// objects before handing them to the store, and a reload swaps the whole set
// with Replace. Readers can therefore use the slices returned by Stops and
// Routes without holding the lock.
type Store struct {
	mu         sync.RWMutex
	stops      map[int]*models.Stop
	stopOrder  []int
	routes     map[string]*models.Route
	routeOrder []string
	selected   *models.Stop
}

// NewStore initializes and returns a new, empty Store.
func NewStore() *Store {
	return &Store{
		stops:  make(map[int]*models.Stop),
		routes: make(map[string]*models.Route),
	}
}

// AddStop registers a stop. A stop with the same number replaces the previous
// one but keeps its position in iteration order.
func (s *Store) AddStop(stop *models.Stop) error {
	if stop == nil {
		return fmt.Errorf("nil stop")
	}
	if err := stop.Location.Validate(); err != nil {
		return fmt.Errorf("stop %d: %w", stop.Number, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addStopLocked(stop)
	return nil
}

func (s *Store) addStopLocked(stop *models.Stop) {
	if _, exists := s.stops[stop.Number]; !exists {
		s.stopOrder = append(s.stopOrder, stop.Number)
	}
	s.stops[stop.Number] = stop
	if s.selected != nil && s.selected.Number == stop.Number {
		s.selected = stop
	}
}

// Stop returns the stop with the given number.
func (s *Store) Stop(number int) (*models.Stop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stop, ok := s.stops[number]
	return stop, ok
}

// Stops returns every stop in insertion order.
func (s *Store) Stops() []*models.Stop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Stop, 0, len(s.stopOrder))
	for _, number := range s.stopOrder {
		out = append(out, s.stops[number])
	}
	return out
}

// AddRoute registers a route, replacing any route with the same feed ID.
// Distinct routes may share a public number.
func (s *Store) AddRoute(route *models.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addRouteLocked(route)
}

func (s *Store) addRouteLocked(route *models.Route) {
	if _, exists := s.routes[route.ID]; !exists {
		s.routeOrder = append(s.routeOrder, route.ID)
	}
	s.routes[route.ID] = route
}

// Route returns the first route, in insertion order, with the given number.
func (s *Store) Route(number string) (*models.Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.routeOrder {
		if r := s.routes[id]; r.Number == number {
			return r, true
		}
	}
	return nil, false
}

// RouteByID returns the route whose feed identifier is id.
func (s *Store) RouteByID(id string) (*models.Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	route, ok := s.routes[id]
	return route, ok
}

// Routes returns every route in insertion order.
func (s *Store) Routes() []*models.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Route, 0, len(s.routeOrder))
	for _, id := range s.routeOrder {
		out = append(out, s.routes[id])
	}
	return out
}

// Replace swaps the full contents of the store. The selection survives when
// the selected stop number is still present; otherwise it is cleared.
func (s *Store) Replace(stops []*models.Stop, routes []*models.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var selectedNumber int
	hadSelection := s.selected != nil
	if hadSelection {
		selectedNumber = s.selected.Number
	}

	s.stops = make(map[int]*models.Stop, len(stops))
	s.stopOrder = make([]int, 0, len(stops))
	s.routes = make(map[string]*models.Route, len(routes))
	s.routeOrder = make([]string, 0, len(routes))
	s.selected = nil

	for _, r := range routes {
		s.addRouteLocked(r)
	}
	for _, stop := range stops {
		s.addStopLocked(stop)
	}

	if hadSelection {
		s.selected = s.stops[selectedNumber]
	}
}

// Select marks the stop with the given number as selected.
func (s *Store) Select(number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stop, ok := s.stops[number]
	if !ok {
		return fmt.Errorf("select stop %d: %w", number, ErrStopNotFound)
	}
	s.selected = stop
	return nil
}

// Selected returns the selected stop, or nil when nothing is selected.
func (s *Store) Selected() *models.Stop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// ClearSelection removes the current selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
}

// Len returns the number of stops and routes held.
func (s *Store) Len() (stops int, routes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stops), len(s.routes)
}

// Bounds computes the bounding box of all stop locations.
func (s *Store) Bounds() (geo.BoundingBox, error) {
	stops := s.Stops()
	locations := make([]geo.LatLon, 0, len(stops))
	for _, stop := range stops {
		locations = append(locations, stop.Location)
	}
	return geo.ComputeBoundingBox(locations)
}
