package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// ErrInvalidCoordinate is returned whenever a latitude or longitude is NaN,
// infinite or outside the WGS84 range. Callers must never treat such input
// as "outside the viewport".
var ErrInvalidCoordinate = errors.New("invalid geographic coordinate")

// LatLon is an immutable geographic coordinate in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewLatLon validates lat and lon and returns the coordinate.
func NewLatLon(lat, lon float64) (LatLon, error) {
	ll := LatLon{Lat: lat, Lon: lon}
	if err := ll.Validate(); err != nil {
		return LatLon{}, err
	}
	return ll, nil
}

// Validate reports ErrInvalidCoordinate for NaN, infinite or out of range values.
func (ll LatLon) Validate() error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lon) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lon, 0) {
		return fmt.Errorf("%w: (%v, %v) is not a number", ErrInvalidCoordinate, ll.Lat, ll.Lon)
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lon < -180 || ll.Lon > 180 {
		return fmt.Errorf("%w: (%v, %v) is out of range", ErrInvalidCoordinate, ll.Lat, ll.Lon)
	}
	return nil
}

func (ll LatLon) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", ll.Lat, ll.Lon)
}

// BoundingBox defines the corners of a lat/lon box
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains checks whether the given coordinate is within the bounding box, edges included.
func (b BoundingBox) Contains(ll LatLon) bool {
	return ll.Lat >= b.MinLat && ll.Lat <= b.MaxLat && ll.Lon >= b.MinLon && ll.Lon <= b.MaxLon
}

// ComputeBoundingBox computes the smallest box holding every valid location.
func ComputeBoundingBox(locations []LatLon) (BoundingBox, error) {
	if len(locations) == 0 {
		return BoundingBox{}, fmt.Errorf("no locations to compute bounding box")
	}

	minLat := math.MaxFloat64
	maxLat := -math.MaxFloat64
	minLon := math.MaxFloat64
	maxLon := -math.MaxFloat64

	for _, ll := range locations {
		if ll.Validate() != nil {
			continue
		}
		minLat = math.Min(minLat, ll.Lat)
		maxLat = math.Max(maxLat, ll.Lat)
		minLon = math.Min(minLon, ll.Lon)
		maxLon = math.Max(maxLon, ll.Lon)
	}

	if minLat == math.MaxFloat64 {
		return BoundingBox{}, fmt.Errorf("no valid latitude/longitude found in locations")
	}

	return BoundingBox{
		MinLat: minLat,
		MaxLat: maxLat,
		MinLon: minLon,
		MaxLon: maxLon,
	}, nil
}

// IsValidLatLon returns true if the given latitude and longitude values
// fall within the valid geographic coordinate bounds.
//
// Note: This function treats the coordinate (0,0) as invalid, even though it
// is a valid location in the Gulf of Guinea. Realtime feeds commonly report
// (0,0) for vehicles without a GPS fix, so bus positions are filtered with it.
// Geometry input is checked with LatLon.Validate instead.
func IsValidLatLon(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return LatLon{Lat: lat, Lon: lon}.Validate() == nil
}

// earthRadiusInMeters is the Earth's volumetric mean radius.
//
// Reference: NASA Planetary Fact Sheet – Earth
// https://nssdc.gsfc.nasa.gov/planetary/factsheet/earthfact.html
const earthRadiusInMeters = 6371000

// HaversineDistance returns the great-circle distance between two coordinates in meters.
func HaversineDistance(a, b LatLon) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * earthRadiusInMeters
}
