package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	remoteGtfs "github.com/jamespfennell/gtfs"
	"busesareus.org/internal/config"
	"busesareus.org/internal/geo"
	"busesareus.org/internal/metrics"
	"busesareus.org/internal/models"
	"busesareus.org/internal/report"
	"busesareus.org/internal/utils"
)

const providerGTFSRealtime = "gtfs-rt"

// GTFSRealtimeBusProvider serves bus locations from a GTFS-realtime vehicle
// positions feed. The feed is fetched at most once per MaxAge and shared
// between stops.
type GTFSRealtimeBusProvider struct {
	client      *http.Client
	feedURL     string
	headerKey   string
	headerValue string
	logger      *slog.Logger
	vehicles    *VehicleStore
	// refreshMu serializes downloads so concurrent misses share one fetch.
	refreshMu  sync.Mutex
	MaxAge     time.Duration
	MaxRetries int
	now        func() time.Time
}

// NewGTFSRealtimeBusProvider creates a provider for the feed at feedURL. When
// headerKey and headerValue are set they are sent with every request, which is
// how most agencies pass API keys.
func NewGTFSRealtimeBusProvider(client *http.Client, feedURL, headerKey, headerValue string, maxAge time.Duration, logger *slog.Logger) *GTFSRealtimeBusProvider {
	return &GTFSRealtimeBusProvider{
		client:      client,
		feedURL:     feedURL,
		headerKey:   headerKey,
		headerValue: headerValue,
		logger:      logger,
		vehicles:    NewVehicleStore(),
		MaxAge:      maxAge,
		now:         time.Now,
	}
}

func (p *GTFSRealtimeBusProvider) URL() (*url.URL, error) {
	u, err := url.Parse(p.feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GTFS-RT URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("GTFS-RT URL %q is not absolute", p.feedURL)
	}
	return u, nil
}

// DataSourceToBytes downloads the raw protobuf feed.
func (p *GTFSRealtimeBusProvider) DataSourceToBytes(ctx context.Context) ([]byte, error) {
	u, err := p.URL()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if p.headerKey != "" && p.headerValue != "" {
		req.Header.Set(p.headerKey, p.headerValue)
	}

	resp, err := config.DoWithBackoff(ctx, p.client, req, p.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch GTFS-RT feed: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GTFS-RT feed returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read GTFS-RT feed: %w", ErrProviderUnavailable, err)
	}
	return data, nil
}

func (p *GTFSRealtimeBusProvider) fresh() ([]remoteGtfs.Vehicle, bool) {
	vehicles, fetchedAt := p.vehicles.Get()
	return vehicles, !fetchedAt.IsZero() && p.now().Sub(fetchedAt) < p.MaxAge
}

// Vehicles returns the vehicles of the feed, downloading it when the stored
// copy is older than MaxAge. Callers that miss while a download is running
// wait for it and reuse its result.
func (p *GTFSRealtimeBusProvider) Vehicles(ctx context.Context) ([]remoteGtfs.Vehicle, error) {
	if vehicles, ok := p.fresh(); ok {
		metrics.ProviderCacheResults.WithLabelValues("hit").Inc()
		return vehicles, nil
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	if vehicles, ok := p.fresh(); ok {
		metrics.ProviderCacheResults.WithLabelValues("hit").Inc()
		return vehicles, nil
	}
	metrics.ProviderCacheResults.WithLabelValues("miss").Inc()

	data, err := p.DataSourceToBytes(ctx)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(providerGTFSRealtime, "unavailable").Inc()
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("vehicle_position_url", p.feedURL),
			Level: sentry.LevelWarning,
		})
		return nil, err
	}

	realtimeData, err := remoteGtfs.ParseRealtime(data, &remoteGtfs.ParseRealtimeOptions{})
	if err != nil {
		err = fmt.Errorf("%w: failed to parse GTFS-RT feed: %w", ErrMalformedResponse, err)
		metrics.ProviderErrors.WithLabelValues(providerGTFSRealtime, "malformed").Inc()
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags: utils.MakeMap("vehicle_position_url", p.feedURL),
		})
		return nil, err
	}

	p.vehicles.Set(realtimeData.Vehicles, p.now())
	p.logger.Debug("Fetched GTFS-RT feed", "url", p.feedURL, "vehicles", len(realtimeData.Vehicles))
	return realtimeData.Vehicles, nil
}

// Buses returns the vehicles whose trip belongs to a route serving stop.
func (p *GTFSRealtimeBusProvider) Buses(ctx context.Context, stop *models.Stop) ([]models.Bus, error) {
	if stop == nil {
		return nil, fmt.Errorf("no stop to locate buses for")
	}
	vehicles, err := p.Vehicles(ctx)
	if err != nil {
		return nil, err
	}
	return BusesForStop(vehicles, stop), nil
}

// BusesForStop keeps the vehicles running a route of stop and converts them.
// A vehicle matches when its trip's route id equals the route's feed id or
// its public number, with feed ids taking precedence. Vehicles without a
// usable position are dropped.
func BusesForStop(vehicles []remoteGtfs.Vehicle, stop *models.Stop) []models.Bus {
	routes := make(map[string]*models.Route, 2*len(stop.Routes))
	for _, r := range stop.Routes {
		if r.ID != "" {
			routes[r.ID] = r
		}
	}
	for _, r := range stop.Routes {
		if _, ok := routes[r.Number]; !ok {
			routes[r.Number] = r
		}
	}

	buses := []models.Bus{}
	for _, v := range vehicles {
		if v.Trip == nil {
			continue
		}
		route, ok := routes[v.Trip.ID.RouteID]
		if !ok {
			continue
		}
		if v.Position == nil || v.Position.Latitude == nil || v.Position.Longitude == nil {
			continue
		}
		lat := float64(*v.Position.Latitude)
		lon := float64(*v.Position.Longitude)
		if !geo.IsValidLatLon(lat, lon) {
			continue
		}

		bus := models.Bus{
			RouteNo:  route.Number,
			Location: geo.LatLon{Lat: lat, Lon: lon},
		}
		if v.ID != nil {
			bus.VehicleNo = v.ID.Label
			if bus.VehicleNo == "" {
				bus.VehicleNo = v.ID.ID
			}
		}
		if v.Timestamp != nil {
			bus.RecordedTime = v.Timestamp.UTC().Format(time.RFC3339)
		}
		buses = append(buses, bus)
	}
	return buses
}
