package geo

import (
	"fmt"

	"github.com/golang/geo/s2"
)

// clusterLevelOffset maps a web-map zoom level to an S2 cell level. At zoom 16
// this yields level 14 cells (~600 m), about the spread of a marker icon.
const clusterLevelOffset = 2

// s2ClusterID generates a stable S2-based cluster ID for a lat/lon.
func s2ClusterID(lat, lon float64, level int) string {
	ll := s2.LatLngFromDegrees(lat, lon)
	cellID := s2.CellIDFromLatLng(ll).Parent(level)
	return fmt.Sprintf("s2_%d", uint64(cellID))
}

// ClusterLevel returns the S2 cell level used to group markers at the given zoom.
func ClusterLevel(zoom int) int {
	level := zoom - clusterLevelOffset
	if level < 0 {
		return 0
	}
	if level > s2.MaxLevel {
		return s2.MaxLevel
	}
	return level
}

// ClusterID returns the id of the cluster the location falls in at the given
// zoom. Markers sharing an id can be drawn as a single cluster icon.
func ClusterID(ll LatLon, zoom int) string {
	return s2ClusterID(ll.Lat, ll.Lon, ClusterLevel(zoom))
}
