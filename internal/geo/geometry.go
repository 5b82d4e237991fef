package geo

import (
	"fmt"
	"math"
)

// MapPoint is the coordinate type handed to the map rendering client.
type MapPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ToMapPoint converts a coordinate to the rendering point type. The conversion is lossless.
func ToMapPoint(ll LatLon) MapPoint {
	return MapPoint{Latitude: ll.Lat, Longitude: ll.Lon}
}

// LatLon converts the point back to a coordinate.
func (p MapPoint) LatLon() LatLon {
	return LatLon{Lat: p.Latitude, Lon: p.Longitude}
}

// Viewport is the visible map region. NorthWest is the upper-left corner
// (max lat, min lon) and SouthEast the lower-right one (min lat, max lon).
type Viewport struct {
	NorthWest LatLon `json:"north_west"`
	SouthEast LatLon `json:"south_east"`
}

// NewViewport validates both corners and returns the viewport.
func NewViewport(nw, se LatLon) (Viewport, error) {
	if err := nw.Validate(); err != nil {
		return Viewport{}, fmt.Errorf("north-west corner: %w", err)
	}
	if err := se.Validate(); err != nil {
		return Viewport{}, fmt.Errorf("south-east corner: %w", err)
	}
	return Viewport{NorthWest: nw, SouthEast: se}, nil
}

// Contains reports whether p lies inside the viewport.
func (v Viewport) Contains(p LatLon) (bool, error) {
	return RectangleContainsPoint(v.NorthWest, v.SouthEast, p)
}

// IntersectsLine reports whether the segment p1-p2 touches the viewport.
func (v Viewport) IntersectsLine(p1, p2 LatLon) (bool, error) {
	return RectangleIntersectsLine(v.NorthWest, v.SouthEast, p1, p2)
}

// Bounds returns the viewport as a normalized bounding box.
func (v Viewport) Bounds() BoundingBox {
	return normalize(v.NorthWest, v.SouthEast)
}

// normalize orders the corners so that the box is well formed whichever
// corner the caller passed first.
func normalize(nw, se LatLon) BoundingBox {
	return BoundingBox{
		MinLat: math.Min(nw.Lat, se.Lat),
		MaxLat: math.Max(nw.Lat, se.Lat),
		MinLon: math.Min(nw.Lon, se.Lon),
		MaxLon: math.Max(nw.Lon, se.Lon),
	}
}

func validateAll(points ...LatLon) error {
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RectangleContainsPoint returns true iff point lies within the rectangle
// spanned by nw and se, edges included.
func RectangleContainsPoint(nw, se, point LatLon) (bool, error) {
	if err := validateAll(nw, se, point); err != nil {
		return false, err
	}
	return normalize(nw, se).Contains(point), nil
}

// RectangleIntersectsLine returns true iff some point of the segment p1-p2
// lies inside the rectangle or on its boundary. The test is planar with
// longitude as x and latitude as y, which is accurate at viewport scale.
func RectangleIntersectsLine(nw, se, p1, p2 LatLon) (bool, error) {
	if err := validateAll(nw, se, p1, p2); err != nil {
		return false, err
	}

	box := normalize(nw, se)
	if box.Contains(p1) || box.Contains(p2) {
		return true, nil
	}

	corners := [4]LatLon{
		{Lat: box.MinLat, Lon: box.MinLon},
		{Lat: box.MinLat, Lon: box.MaxLon},
		{Lat: box.MaxLat, Lon: box.MaxLon},
		{Lat: box.MaxLat, Lon: box.MinLon},
	}
	for i := range corners {
		if segmentsIntersect(p1, p2, corners[i], corners[(i+1)%len(corners)]) {
			return true, nil
		}
	}
	return false, nil
}

// orientation is the sign of the cross product (q-p) x (r-p).
func orientation(p, q, r LatLon) int {
	v := (q.Lon-p.Lon)*(r.Lat-p.Lat) - (q.Lat-p.Lat)*(r.Lon-p.Lon)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// onSegment reports whether r, known to be collinear with p-q, lies between them.
func onSegment(p, q, r LatLon) bool {
	return r.Lon >= math.Min(p.Lon, q.Lon) && r.Lon <= math.Max(p.Lon, q.Lon) &&
		r.Lat >= math.Min(p.Lat, q.Lat) && r.Lat <= math.Max(p.Lat, q.Lat)
}

func segmentsIntersect(a, b, c, d LatLon) bool {
	d1 := orientation(c, d, a)
	d2 := orientation(c, d, b)
	d3 := orientation(a, b, c)
	d4 := orientation(a, b, d)

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	return (d1 == 0 && onSegment(c, d, a)) ||
		(d2 == 0 && onSegment(c, d, b)) ||
		(d3 == 0 && onSegment(a, b, c)) ||
		(d4 == 0 && onSegment(a, b, d))
}
