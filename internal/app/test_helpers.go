package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"busesareus.org/internal/config"
	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
	"busesareus.org/internal/transit"
)

// newTestApplication returns an application whose store holds three
// downtown Vancouver stops. Route 099 serves 51479 and 50001 and follows a
// three point pattern; route R4 serves 50001 only.
func newTestApplication(t *testing.T) *Application {
	t.Helper()

	store := transit.NewStore()

	r099 := models.NewRoute("099", "Commercial-Broadway/UBC (B-Line)")
	r099.AddPattern(&models.RoutePattern{
		Name:        "S099",
		Destination: "UBC",
		Path: []geo.LatLon{
			{Lat: 49.2832, Lon: -123.1164},
			{Lat: 49.2700, Lon: -123.1300},
			{Lat: 49.2635, Lon: -123.1385},
		},
	})
	r4 := models.NewRoute("R4", "41st Ave")
	store.AddRoute(r099)
	store.AddRoute(r4)

	stops := []*models.Stop{
		models.NewStop(51479, "Granville Stn Bay 2", geo.LatLon{Lat: 49.2832, Lon: -123.1164}),
		models.NewStop(50001, "W Broadway @ Granville", geo.LatLon{Lat: 49.2635, Lon: -123.1385}),
		models.NewStop(50002, "W 41 Ave @ Granville", geo.LatLon{Lat: 49.2339, Lon: -123.1398}),
	}
	stops[0].AddRoute(r099)
	stops[1].AddRoute(r099)
	stops[1].AddRoute(r4)
	stops[2].AddRoute(r4)
	for _, s := range stops {
		if err := store.AddStop(s); err != nil {
			t.Fatalf("failed to add stop %d: %v", s.Number, err)
		}
	}

	return &Application{
		Config:  config.NewConfig(4000, "testing", config.DefaultSettings()),
		Store:   store,
		Locator: &fakeLocator{},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Version: "test-version",
	}
}

type fakeLocator struct {
	buses []models.Bus
	err   error
	calls int
	stop  *models.Stop
}

func (f *fakeLocator) Buses(_ context.Context, stop *models.Stop) ([]models.Bus, error) {
	f.calls++
	f.stop = stop
	return f.buses, f.err
}

type fakeResolver struct {
	stops map[int]*models.Stop
	err   error
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, number int) (*models.Stop, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	stop, ok := f.stops[number]
	if !ok {
		return nil, transit.ErrStopNotFound
	}
	return stop, nil
}
