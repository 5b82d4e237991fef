package visibility

import (
	"fmt"
	"math"

	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
)

// DefaultSearchRadius is the nearest-stop search radius in meters.
const DefaultSearchRadius = 10000.0

// Nearest is the result of a nearest-stop search.
type Nearest struct {
	Stop           *models.Stop
	DistanceMeters float64
}

// FindNearest returns the stop closest to location within radius meters.
// A stop at exactly radius qualifies. When two stops are equally close the
// one first in store order wins. ok is false when no stop is in range.
func FindNearest(store StopSource, location geo.LatLon, radius float64) (Nearest, bool, error) {
	if err := location.Validate(); err != nil {
		return Nearest{}, false, err
	}
	if math.IsNaN(radius) || radius < 0 {
		return Nearest{}, false, fmt.Errorf("invalid search radius %v", radius)
	}

	var best Nearest
	found := false
	for _, stop := range store.Stops() {
		d := geo.HaversineDistance(location, stop.Location)
		if d > radius {
			continue
		}
		if !found || d < best.DistanceMeters {
			best = Nearest{Stop: stop, DistanceMeters: d}
			found = true
		}
	}
	return best, found, nil
}
