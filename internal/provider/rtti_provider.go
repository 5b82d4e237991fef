package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"busesareus.org/internal/config"
	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
	"busesareus.org/internal/utils"
)

const rttiBusesPath = "/rttiapi/v1/buses"

// HTTPBusLocationProvider queries the Translink RTTI API for the buses
// serving one stop. The stop is fixed at construction.
type HTTPBusLocationProvider struct {
	client     *http.Client
	host       string
	apiKey     string
	stop       *models.Stop
	MaxRetries int
}

// NewHTTPBusLocationProvider creates a provider for stop. host is either a bare
// host name such as "api.translink.ca" or a base URL with a scheme.
func NewHTTPBusLocationProvider(client *http.Client, host, apiKey string, stop *models.Stop) *HTTPBusLocationProvider {
	return &HTTPBusLocationProvider{
		client: client,
		host:   host,
		apiKey: apiKey,
		stop:   stop,
	}
}

// URL returns the RTTI request URL, e.g.
// http://api.translink.ca/rttiapi/v1/buses?apikey=KEY&stopNo=51479
func (p *HTTPBusLocationProvider) URL() (*url.URL, error) {
	if p.stop == nil {
		return nil, fmt.Errorf("no stop to locate buses for")
	}
	if p.host == "" {
		return nil, fmt.Errorf("translink host is not configured")
	}

	base := &url.URL{Scheme: "http", Host: p.host}
	if strings.Contains(p.host, "://") {
		parsed, err := url.Parse(p.host)
		if err != nil {
			return nil, fmt.Errorf("invalid translink host %q: %w", p.host, err)
		}
		base = parsed
	}

	q := url.Values{}
	q.Set("apikey", p.apiKey)
	q.Set("stopNo", strconv.Itoa(p.stop.Number))

	return &url.URL{
		Scheme:   base.Scheme,
		Host:     base.Host,
		Path:     strings.TrimSuffix(base.Path, "/") + rttiBusesPath,
		RawQuery: q.Encode(),
	}, nil
}

// DataSourceToBytes fetches the raw JSON answer for the provider's stop.
// A non-2xx status yields an error wrapping ErrProviderUnavailable and, when
// the body holds one, the *APIError sent by the server.
func (p *HTTPBusLocationProvider) DataSourceToBytes(ctx context.Context) ([]byte, error) {
	u, err := p.URL()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := config.DoWithBackoff(ctx, p.client, req, p.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, utils.RedactURL(u, "apikey"), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response from %s: %w", ErrProviderUnavailable, utils.RedactURL(u, "apikey"), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr APIError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Code != "" {
			return nil, fmt.Errorf("%w: %s returned status %d: %w", ErrProviderUnavailable, utils.RedactURL(u, "apikey"), resp.StatusCode, &apiErr)
		}
		return nil, fmt.Errorf("%w: %s returned status %d", ErrProviderUnavailable, utils.RedactURL(u, "apikey"), resp.StatusCode)
	}
	return data, nil
}

type rttiBus struct {
	VehicleNo    string  `json:"VehicleNo"`
	TripID       int     `json:"TripId"`
	RouteNo      string  `json:"RouteNo"`
	Direction    string  `json:"Direction"`
	Destination  string  `json:"Destination"`
	Pattern      string  `json:"Pattern"`
	Latitude     float64 `json:"Latitude"`
	Longitude    float64 `json:"Longitude"`
	RecordedTime string  `json:"RecordedTime"`
}

// ParseBuses decodes an RTTI buses document. Buses reported without a
// usable position are dropped. An error document saying that no buses are
// running yields an empty list.
func ParseBuses(data []byte) ([]models.Bus, error) {
	var raw []rttiBus
	if err := json.Unmarshal(data, &raw); err != nil {
		var apiErr APIError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Code != "" {
			if apiErr.NoBuses() {
				return []models.Bus{}, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, &apiErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	buses := make([]models.Bus, 0, len(raw))
	for _, b := range raw {
		if !geo.IsValidLatLon(b.Latitude, b.Longitude) {
			continue
		}
		buses = append(buses, models.Bus{
			VehicleNo:    b.VehicleNo,
			RouteNo:      strings.TrimSpace(b.RouteNo),
			Direction:    b.Direction,
			Destination:  b.Destination,
			Pattern:      b.Pattern,
			Location:     geo.LatLon{Lat: b.Latitude, Lon: b.Longitude},
			RecordedTime: b.RecordedTime,
		})
	}
	return buses, nil
}

// isNoBuses reports whether err carries the RTTI "no buses" error document.
func isNoBuses(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NoBuses()
}
