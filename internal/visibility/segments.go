package visibility

import (
	"fmt"
	"math"

	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
)

// palette colors routes that do not carry their own color.
var palette = []string{
	"#E6194B",
	"#3CB44B",
	"#4363D8",
	"#F58231",
	"#911EB4",
	"#42D4F4",
	"#F032E6",
	"#9A6324",
	"#800000",
	"#000075",
}

// LegendEntry pairs a route number with the color its segments are drawn in.
type LegendEntry struct {
	RouteNo string `json:"route_no"`
	Name    string `json:"name,omitempty"`
	Color   string `json:"color"`
}

// Segment is the render descriptor for one drawable piece of a route pattern.
type Segment struct {
	RouteNo   string       `json:"route_no"`
	Pattern   string       `json:"pattern"`
	Direction string       `json:"direction,omitempty"`
	From      geo.MapPoint `json:"from"`
	To        geo.MapPoint `json:"to"`
	Color     string       `json:"color"`
	Width     float64      `json:"width"`
}

// RouteOverlay holds the legend and visible segments of the selected stop's routes.
// Evaluated counts every candidate segment that was tested against the viewport.
type RouteOverlay struct {
	StopNo    int           `json:"stop_no,omitempty"`
	Legend    []LegendEntry `json:"legend"`
	Segments  []Segment     `json:"segments"`
	Evaluated int           `json:"evaluated"`
}

// Legend assigns a color to every route in order. A route's own color wins;
// the others take the next palette color.
func Legend(routes []*models.Route) []LegendEntry {
	entries := make([]LegendEntry, 0, len(routes))
	next := 0
	for _, r := range routes {
		color := r.Color
		if color == "" {
			color = palette[next%len(palette)]
			next++
		}
		entries = append(entries, LegendEntry{RouteNo: r.Number, Name: r.Name, Color: color})
	}
	return entries
}

// LineWidth returns the stroke width for route segments at the given zoom.
func LineWidth(zoom int, scale float64) float64 {
	switch {
	case zoom > 14:
		return 7 * scale
	case zoom > 10:
		return 5 * scale
	}
	return 2 * scale
}

// VisibleSegments returns the segments of every pattern of every route serving
// the selected stop that touch the viewport. Without a selection the overlay is empty.
func VisibleSegments(store SelectionSource, viewport geo.Viewport, zoom int, scale float64) (RouteOverlay, error) {
	if zoom < 0 {
		return RouteOverlay{}, fmt.Errorf("invalid zoom level %d", zoom)
	}
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return RouteOverlay{}, fmt.Errorf("invalid scale %v", scale)
	}

	overlay := RouteOverlay{Legend: []LegendEntry{}, Segments: []Segment{}}
	stop := store.Selected()
	if stop == nil {
		return overlay, nil
	}
	overlay.StopNo = stop.Number
	overlay.Legend = Legend(stop.Routes)
	width := LineWidth(zoom, scale)

	for i, route := range stop.Routes {
		color := overlay.Legend[i].Color
		for _, pattern := range route.Patterns {
			path := pattern.Path
			for j := 0; j+1 < len(path); j++ {
				overlay.Evaluated++
				visible, err := viewport.IntersectsLine(path[j], path[j+1])
				if err != nil {
					return RouteOverlay{}, fmt.Errorf("route %s pattern %s point %d: %w", route.Number, pattern.Name, j, err)
				}
				if !visible {
					continue
				}
				overlay.Segments = append(overlay.Segments, Segment{
					RouteNo:   route.Number,
					Pattern:   pattern.Name,
					Direction: pattern.Direction,
					From:      geo.ToMapPoint(path[j]),
					To:        geo.ToMapPoint(path[j+1]),
					Color:     color,
					Width:     width,
				})
			}
		}
	}
	return overlay, nil
}
