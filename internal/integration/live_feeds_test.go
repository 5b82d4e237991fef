//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
	"busesareus.org/internal/provider"
	"busesareus.org/internal/transit"
)

// TestDownloadStaticBundle verifies that the configured GTFS bundle downloads
// and yields at least one numbered stop.
func TestDownloadStaticBundle(t *testing.T) {
	url := integrationSettings.GTFS.StaticURL
	if url == "" {
		t.Skip("Skipping: missing gtfs.static_url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	data, err := transit.DownloadStatic(ctx, http.DefaultClient, url, 1)
	if err != nil {
		t.Fatalf("failed to download GTFS bundle %s: %v", url, err)
	}
	static, err := transit.ParseStatic(data)
	if err != nil {
		t.Fatalf("failed to parse GTFS bundle %s: %v", url, err)
	}

	store := transit.NewStore()
	summary, err := transit.LoadStatic(store, static)
	if err != nil {
		t.Fatalf("failed to load GTFS bundle %s: %v", url, err)
	}
	if summary.Stops == 0 {
		t.Errorf("expected stops in bundle %s", url)
	}
	t.Logf("Loaded %d stops and %d routes from %s", summary.Stops, summary.Routes, url)
}

// TestRTTIBuses verifies that the Translink RTTI API answers for a busy
// downtown Vancouver stop.
func TestRTTIBuses(t *testing.T) {
	tl := integrationSettings.Translink
	if tl.APIKey == "" {
		t.Skip("Skipping: missing translink.api_key")
	}

	stop := models.NewStop(51479, "Granville Stn Bay 2", geo.LatLon{Lat: 49.2832, Lon: -123.1164})
	p := provider.NewHTTPBusLocationProvider(http.DefaultClient, tl.Host, tl.APIKey, stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := p.DataSourceToBytes(ctx)
	if err != nil {
		t.Fatalf("RTTI request failed: %v", err)
	}
	buses, err := provider.ParseBuses(data)
	if err != nil {
		t.Fatalf("failed to parse RTTI response: %v", err)
	}
	t.Logf("Stop %d has %d buses", stop.Number, len(buses))
}
