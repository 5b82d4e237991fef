package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/cassette"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"

	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
	"busesareus.org/internal/utils"
)

func testStop() *models.Stop {
	return models.NewStop(51479, "Granville Stn", geo.LatLon{Lat: 49.2832, Lon: -123.1164})
}

func TestHTTPBusLocationProviderURL(t *testing.T) {
	p := NewHTTPBusLocationProvider(http.DefaultClient, "api.translink.ca", "KEY", testStop())
	u, err := p.URL()
	require.NoError(t, err)
	assert.Equal(t, "http://api.translink.ca/rttiapi/v1/buses?apikey=KEY&stopNo=51479", u.String())

	t.Run("base URL host", func(t *testing.T) {
		p := NewHTTPBusLocationProvider(http.DefaultClient, "https://rtti.example.com/proxy/", "KEY", testStop())
		u, err := p.URL()
		require.NoError(t, err)
		assert.Equal(t, "https://rtti.example.com/proxy/rttiapi/v1/buses?apikey=KEY&stopNo=51479", u.String())
	})

	t.Run("key is escaped", func(t *testing.T) {
		p := NewHTTPBusLocationProvider(http.DefaultClient, "api.translink.ca", "a&b", testStop())
		u, err := p.URL()
		require.NoError(t, err)
		assert.Equal(t, "a&b", u.Query().Get("apikey"))
	})

	t.Run("no stop", func(t *testing.T) {
		_, err := NewHTTPBusLocationProvider(http.DefaultClient, "api.translink.ca", "KEY", nil).URL()
		assert.Error(t, err)
	})

	t.Run("no host", func(t *testing.T) {
		_, err := NewHTTPBusLocationProvider(http.DefaultClient, "", "KEY", testStop()).URL()
		assert.Error(t, err)
	})
}

func TestHTTPBusLocationProvider_WithVCR(t *testing.T) {
	rec, err := recorder.New(filepath.Join("testdata", "vcr", "rtti_buses_51479"),
		recorder.WithMode(recorder.ModeReplayOnly),
		recorder.WithMatcher(func(r *http.Request, i cassette.Request) bool {
			return r.Method == i.Method && r.URL.String() == i.URL
		}),
	)
	require.NoError(t, err)
	defer rec.Stop()

	client := &http.Client{
		Transport: rec,
		Timeout:   10 * time.Second,
	}

	p := NewHTTPBusLocationProvider(client, "api.translink.ca", "KEY", testStop())
	data, err := p.DataSourceToBytes(context.Background())
	require.NoError(t, err)

	buses, err := ParseBuses(data)
	require.NoError(t, err)
	require.Len(t, buses, 2, "bus without a position is dropped")

	assert.Equal(t, "9230", buses[0].VehicleNo)
	assert.Equal(t, "099", buses[0].RouteNo)
	assert.Equal(t, "WEST", buses[0].Direction)
	assert.Equal(t, "UBC", buses[0].Destination)
	assert.Equal(t, "WB1", buses[0].Pattern)
	assert.Equal(t, geo.LatLon{Lat: 49.263217, Lon: -123.138667}, buses[0].Location)
	assert.Equal(t, "09:14:52 am", buses[0].RecordedTime)
	assert.Equal(t, "EAST", buses[1].Direction)
}

func TestHTTPBusLocationProviderErrors(t *testing.T) {
	t.Run("no buses", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"Code":"3005","Message":"No buses found."}`))
		}))
		defer server.Close()

		p := NewHTTPBusLocationProvider(server.Client(), server.URL, "KEY", testStop())
		_, err := p.DataSourceToBytes(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProviderUnavailable))

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.NoBuses())
		assert.True(t, isNoBuses(err))
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		p := NewHTTPBusLocationProvider(server.Client(), server.URL, "KEY", testStop())
		_, err := p.DataSourceToBytes(context.Background())
		assert.ErrorIs(t, err, ErrProviderUnavailable)
		assert.False(t, isNoBuses(err))
		assert.NotContains(t, err.Error(), "KEY", "api key is redacted")
	})
}

func TestParseBuses(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr error
	}{
		{name: "empty list", body: `[]`, want: 0},
		{name: "one bus", body: `[{"VehicleNo":"1","RouteNo":"099","Latitude":49.26,"Longitude":-123.13}]`, want: 1},
		{name: "out of range position", body: `[{"VehicleNo":"1","RouteNo":"099","Latitude":149.26,"Longitude":-123.13}]`, want: 0},
		{name: "no buses document", body: `{"Code":"3005","Message":"No buses found."}`, want: 0},
		{name: "invalid key document", body: `{"Code":"10001","Message":"Invalid API key."}`, wantErr: ErrProviderUnavailable},
		{name: "garbage", body: `<html>`, wantErr: ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buses, err := ParseBuses([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, buses)
			assert.Len(t, buses, tt.want)
		})
	}
}

func TestRedactURL(t *testing.T) {
	p := NewHTTPBusLocationProvider(http.DefaultClient, "api.translink.ca", "SECRET", testStop())
	u, err := p.URL()
	require.NoError(t, err)
	assert.Equal(t, "http://api.translink.ca/rttiapi/v1/buses?apikey=xxxxx&stopNo=51479", utils.RedactURL(u, "apikey"))
}
