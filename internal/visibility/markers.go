package visibility

import (
	"fmt"
	"strconv"
	"strings"

	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
)

// DefaultZoom is used wherever a zoom level of 0 would make no sense, such as
// the cluster radius computation.
const DefaultZoom = 12

// StopSource is the read side of the stop store used by the selector.
type StopSource interface {
	Stops() []*models.Stop
}

// SelectionSource additionally exposes the selected stop.
type SelectionSource interface {
	StopSource
	Selected() *models.Stop
}

// Marker is the render descriptor for one stop.
type Marker struct {
	StopNo   int          `json:"stop_no"`
	Title    string       `json:"title"`
	Position geo.MapPoint `json:"position"`
	Cluster  string       `json:"cluster"`
	Nearest  bool         `json:"nearest"`
	// OnScreen is false for a nearest-stop marker added from outside the viewport.
	OnScreen bool `json:"on_screen"`
}

// MarkerTitle is the stop number and name followed by one line per serving route.
func MarkerTitle(stop *models.Stop) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(stop.Number))
	b.WriteString(" ")
	b.WriteString(stop.Name)
	for _, r := range stop.Routes {
		b.WriteString("\n")
		b.WriteString(r.Number)
	}
	return b.String()
}

func newMarker(stop *models.Stop, zoom int, onScreen bool) *Marker {
	return &Marker{
		StopNo:   stop.Number,
		Title:    MarkerTitle(stop),
		Position: geo.ToMapPoint(stop.Location),
		Cluster:  geo.ClusterID(stop.Location, zoom),
		OnScreen: onScreen,
	}
}

// VisibleStops returns a marker for every stop inside the viewport, in store order.
func VisibleStops(store StopSource, viewport geo.Viewport) ([]Marker, error) {
	return visibleStops(store, viewport, DefaultZoom)
}

func visibleStops(store StopSource, viewport geo.Viewport, zoom int) ([]Marker, error) {
	var markers []Marker
	for _, stop := range store.Stops() {
		inside, err := viewport.Contains(stop.Location)
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", stop.Number, err)
		}
		if inside {
			markers = append(markers, *newMarker(stop, zoom, true))
		}
	}
	return markers, nil
}

// MarkerIndex maps stop numbers to their markers. The reverse lookup is
// Marker.StopNo.
type MarkerIndex struct {
	order   []*Marker
	byStop  map[int]*Marker
	nearest *Marker
}

func newMarkerIndex() *MarkerIndex {
	return &MarkerIndex{order: []*Marker{}, byStop: make(map[int]*Marker)}
}

func (idx *MarkerIndex) add(m *Marker) *Marker {
	if existing, ok := idx.byStop[m.StopNo]; ok {
		return existing
	}
	idx.order = append(idx.order, m)
	idx.byStop[m.StopNo] = m
	return m
}

// Marker returns the marker of the given stop.
func (idx *MarkerIndex) Marker(stopNo int) (*Marker, bool) {
	m, ok := idx.byStop[stopNo]
	return m, ok
}

// Markers returns the markers in the order they were added.
func (idx *MarkerIndex) Markers() []*Marker {
	return idx.order
}

// Nearest returns the marker flagged as nearest to the caller, or nil.
func (idx *MarkerIndex) Nearest() *Marker {
	return idx.nearest
}

// Len returns the number of markers.
func (idx *MarkerIndex) Len() int {
	return len(idx.order)
}

// MarkStops builds the markers of every visible stop. When location is not nil
// the stop nearest to it within radius is flagged; a nearest stop outside the
// viewport gets its own marker appended after the visible ones.
func MarkStops(store StopSource, viewport geo.Viewport, location *geo.LatLon, zoom int, radius float64) (*MarkerIndex, error) {
	if zoom < 0 {
		return nil, fmt.Errorf("invalid zoom level %d", zoom)
	}
	markers, err := visibleStops(store, viewport, zoom)
	if err != nil {
		return nil, err
	}

	idx := newMarkerIndex()
	for i := range markers {
		idx.add(&markers[i])
	}
	if location == nil {
		return idx, nil
	}

	nearest, ok, err := FindNearest(store, *location, radius)
	if err != nil {
		return nil, err
	}
	if !ok {
		return idx, nil
	}
	m := idx.add(newMarker(nearest.Stop, zoom, false))
	m.Nearest = true
	idx.nearest = m
	return idx, nil
}

// ClusterRadius is the distance in pixels within which markers are grouped.
func ClusterRadius(zoom int) int {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return 1000 / zoom
}
