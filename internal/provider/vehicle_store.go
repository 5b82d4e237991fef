package provider

import (
	"sync"
	"time"

	remoteGtfs "github.com/jamespfennell/gtfs"
)

// VehicleStore holds the vehicles of the last GTFS-realtime feed fetched, so
// requests for different stops share one download.
type VehicleStore struct {
	mu        sync.RWMutex
	vehicles  []remoteGtfs.Vehicle
	fetchedAt time.Time
}

func NewVehicleStore() *VehicleStore {
	return &VehicleStore{}
}

// Set replaces the stored vehicles.
func (s *VehicleStore) Set(vehicles []remoteGtfs.Vehicle, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles = vehicles
	s.fetchedAt = fetchedAt
}

// Get returns the stored vehicles and when they were fetched. The time is
// zero when nothing was stored yet.
func (s *VehicleStore) Get() ([]remoteGtfs.Vehicle, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vehicles, s.fetchedAt
}
