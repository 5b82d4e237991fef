package transit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	remoteGtfs "github.com/jamespfennell/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestBuildDataset(t *testing.T) {
	r099 := remoteGtfs.Route{Id: "6641", ShortName: "099", LongName: "UBC", Color: "f5a623"}
	r4 := remoteGtfs.Route{Id: "37807", ShortName: "", LongName: "41st Ave", Color: "FFFFFF"}

	stops := []remoteGtfs.Stop{
		{Id: "1", Code: "51479", Name: "Granville Stn", Latitude: floatPtr(49.2832), Longitude: floatPtr(-123.1164)},
		{Id: "50001", Name: "W Broadway", Latitude: floatPtr(49.2635), Longitude: floatPtr(-123.1385)},
		{Id: "abc", Code: "", Name: "No number", Latitude: floatPtr(49.25), Longitude: floatPtr(-123.1)},
		{Id: "4", Code: "50002", Name: "No location"},
	}

	static := &remoteGtfs.Static{
		Routes: []remoteGtfs.Route{r099, r4},
		Stops:  stops,
	}
	shape := &remoteGtfs.Shape{
		ID: "S099",
		Points: []remoteGtfs.ShapePoint{
			{Latitude: 49.2832, Longitude: -123.1164},
			{Latitude: 49.2635, Longitude: -123.1385},
		},
	}
	static.Trips = []remoteGtfs.ScheduledTrip{
		{
			ID:          "T1",
			Route:       &static.Routes[0],
			Headsign:    "UBC",
			DirectionId: 1,
			Shape:       shape,
			StopTimes: []remoteGtfs.ScheduledStopTime{
				{Stop: &static.Stops[0]},
				{Stop: &static.Stops[1]},
			},
		},
		{
			ID:       "T2",
			Route:    &static.Routes[0],
			Headsign: "UBC",
			Shape:    shape,
			StopTimes: []remoteGtfs.ScheduledStopTime{
				{Stop: &static.Stops[0]},
			},
		},
		{
			ID:    "T3",
			Route: &static.Routes[1],
			StopTimes: []remoteGtfs.ScheduledStopTime{
				{Stop: &static.Stops[1]},
			},
		},
	}

	ds, err := BuildDataset(static)
	require.NoError(t, err)

	assert.Equal(t, LoadSummary{Stops: 2, Routes: 2, Patterns: 1, SkippedStops: 2}, ds.Summary)

	require.Len(t, ds.Routes, 2)
	assert.Equal(t, "099", ds.Routes[0].Number)
	assert.Equal(t, "#F5A623", ds.Routes[0].Color)
	assert.Equal(t, "37807", ds.Routes[1].Number, "route id is used when short name is empty")
	assert.Empty(t, ds.Routes[1].Color, "default white is treated as no color")

	require.Len(t, ds.Stops, 2)
	assert.Equal(t, 51479, ds.Stops[0].Number)
	assert.Equal(t, 50001, ds.Stops[1].Number, "numeric stop id is the fallback number")

	require.Len(t, ds.Stops[0].Routes, 1)
	assert.Equal(t, "099", ds.Stops[0].Routes[0].Number)
	require.Len(t, ds.Stops[1].Routes, 2)
	assert.Equal(t, "099", ds.Stops[1].Routes[0].Number)
	assert.Equal(t, "37807", ds.Stops[1].Routes[1].Number)

	pattern := ds.Routes[0].Pattern("S099")
	require.NotNil(t, pattern)
	assert.Equal(t, "UBC", pattern.Destination)
	assert.Equal(t, "1", pattern.Direction)
	assert.Len(t, pattern.Path, 2)
}

func TestBuildDatasetSharedRouteNumber(t *testing.T) {
	static := &remoteGtfs.Static{
		Routes: []remoteGtfs.Route{
			{Id: "A", ShortName: "N9", LongName: "Downtown"},
			{Id: "B", ShortName: "N9", LongName: "Coquitlam Stn"},
		},
		Stops: []remoteGtfs.Stop{
			{Id: "100", Name: "Main St Stn", Latitude: floatPtr(49.2731), Longitude: floatPtr(-123.1003)},
		},
	}
	shapeA := &remoteGtfs.Shape{ID: "SA", Points: []remoteGtfs.ShapePoint{
		{Latitude: 49.2731, Longitude: -123.1003},
		{Latitude: 49.2832, Longitude: -123.1164},
	}}
	shapeB := &remoteGtfs.Shape{ID: "SB", Points: []remoteGtfs.ShapePoint{
		{Latitude: 49.2731, Longitude: -123.1003},
		{Latitude: 49.2620, Longitude: -123.0690},
	}}
	static.Trips = []remoteGtfs.ScheduledTrip{
		{ID: "TA", Route: &static.Routes[0], Shape: shapeA, DirectionId: 2,
			StopTimes: []remoteGtfs.ScheduledStopTime{{Stop: &static.Stops[0]}}},
		{ID: "TB", Route: &static.Routes[1], Shape: shapeB, DirectionId: 1,
			StopTimes: []remoteGtfs.ScheduledStopTime{{Stop: &static.Stops[0]}}},
	}

	store := NewStore()
	summary, err := LoadStatic(store, static)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Routes)
	assert.Equal(t, 2, summary.Patterns)
	assert.Len(t, store.Routes(), 2, "routes sharing a short name are both kept")

	stop, ok := store.Stop(100)
	require.True(t, ok)
	require.Len(t, stop.Routes, 2)
	assert.Equal(t, "A", stop.Routes[0].ID)
	assert.Equal(t, "B", stop.Routes[1].ID)

	a, ok := store.RouteByID("A")
	require.True(t, ok)
	require.NotNil(t, a.Pattern("SA"))
	assert.Equal(t, "0", a.Pattern("SA").Direction)

	b, ok := store.RouteByID("B")
	require.True(t, ok)
	require.NotNil(t, b.Pattern("SB"))
	assert.Equal(t, "1", b.Pattern("SB").Direction)

	first, ok := store.Route("N9")
	require.True(t, ok)
	assert.Same(t, a, first, "lookup by number returns the first route loaded")
}

func TestBuildDatasetNil(t *testing.T) {
	_, err := BuildDataset(nil)
	assert.Error(t, err)
}

func TestRouteColor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"FFFFFF", ""},
		{"ffffff", ""},
		{"0c2c85", "#0C2C85"},
		{"#123456", "#123456"},
		{"12345", ""},
		{"GGGGGG", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, routeColor(tt.in), "routeColor(%q)", tt.in)
	}
}

func TestStopNumber(t *testing.T) {
	n, ok := stopNumber("51479", "1")
	assert.True(t, ok)
	assert.Equal(t, 51479, n)

	n, ok = stopNumber("", "60980")
	assert.True(t, ok)
	assert.Equal(t, 60980, n)

	_, ok = stopNumber("", "TL_abc")
	assert.False(t, ok)
}

func TestParseStaticBundle(t *testing.T) {
	static, err := ParseStatic(BuildTestBundle(t))
	require.NoError(t, err)

	store := NewStore()
	summary, err := LoadStatic(store, static)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Stops)
	assert.Equal(t, 2, summary.Routes)
	assert.Equal(t, 2, summary.Patterns)

	stop, ok := store.Stop(50001)
	require.True(t, ok)
	assert.True(t, stop.HasRoute("099"))
	assert.True(t, stop.HasRoute("R4"))

	route, ok := store.Route("099")
	require.True(t, ok)
	assert.Equal(t, "#F5A623", route.Color)
	require.NotNil(t, route.Pattern("S099"))
	assert.Len(t, route.Pattern("S099").Path, 3)
	assert.Equal(t, "0", route.Pattern("S099").Direction)

	r4, ok := store.Route("R4")
	require.True(t, ok)
	require.NotNil(t, r4.Pattern("SR4"))
	assert.Equal(t, "1", r4.Pattern("SR4").Direction)
}

func TestParseStaticInvalid(t *testing.T) {
	_, err := ParseStatic([]byte("not a zip"))
	assert.Error(t, err)
}

func TestDownloadStatic(t *testing.T) {
	bundle := BuildTestBundle(t)

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/zip")
			w.Write(bundle)
		}))
		defer server.Close()

		data, err := DownloadStatic(context.Background(), server.Client(), server.URL, 0)
		require.NoError(t, err)
		assert.Equal(t, bundle, data)
	})

	t.Run("Not found", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		_, err := DownloadStatic(context.Background(), server.Client(), server.URL, 0)
		assert.Error(t, err)
	})

	t.Run("Invalid URL", func(t *testing.T) {
		_, err := DownloadStatic(context.Background(), http.DefaultClient, "://invalid-url", 0)
		assert.Error(t, err)
	})
}

func TestTransitServiceLoadFromURL(t *testing.T) {
	bundle := BuildTestBundle(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var down atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			http.Error(w, "unavailable", http.StatusNotFound)
			return
		}
		w.Write(bundle)
	}))
	defer server.Close()

	cacheDir := filepath.Join(t.TempDir(), "gtfs-cache")
	store := NewStore()
	svc := NewTransitService(store, logger, server.Client(), 0, cacheDir)

	summary, err := svc.LoadFromURL(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Stops)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "downloaded bundle is cached")

	down.Store(true)
	fallbackStore := NewStore()
	fallback := NewTransitService(fallbackStore, logger, server.Client(), 0, cacheDir)
	summary, err = fallback.LoadFromURL(context.Background(), server.URL)
	require.NoError(t, err, "cached bundle is used when download fails")
	assert.Equal(t, 3, summary.Stops)

	noCache := NewTransitService(NewStore(), logger, server.Client(), 0, "")
	_, err = noCache.LoadFromURL(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestTransitServiceLoadFromURLHostUnreachable(t *testing.T) {
	bundle := BuildTestBundle(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bundle)
	}))
	url := server.URL
	client := server.Client()

	cacheDir := filepath.Join(t.TempDir(), "gtfs-cache")
	_, err := NewTransitService(NewStore(), logger, client, 1, cacheDir).LoadFromURL(context.Background(), url)
	require.NoError(t, err)
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := NewStore()
	svc := NewTransitService(store, logger, client, 1, cacheDir)
	start := time.Now()
	summary, err := svc.LoadFromURL(ctx, url)
	require.NoError(t, err, "cached bundle is used when the host refuses connections")
	assert.Equal(t, 3, summary.Stops)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NoError(t, ctx.Err(), "load finished before the deadline")
}

func TestNewTransitServiceBoundsRetries(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewTransitService(NewStore(), logger, http.DefaultClient, 0, "")
	assert.Equal(t, DefaultMaxRetries, svc.MaxRetries)

	svc = NewTransitService(NewStore(), logger, http.DefaultClient, -1, "")
	assert.Equal(t, DefaultMaxRetries, svc.MaxRetries)
}

func TestTransitServiceLoadFromFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "gtfs.zip")
	require.NoError(t, os.WriteFile(path, BuildTestBundle(t), 0o644))

	svc := NewTransitService(NewStore(), logger, http.DefaultClient, 0, "")
	summary, err := svc.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Routes)

	_, err = svc.LoadFromFile(filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}

func TestRefreshStaticStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewTransitService(NewStore(), logger, http.DefaultClient, 0, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RefreshStatic(ctx, "http://127.0.0.1:0/gtfs.zip", time.Hour, nil)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh routine did not stop after cancellation")
	}
}
