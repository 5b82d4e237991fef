package transit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	remoteGtfs "github.com/jamespfennell/gtfs"
	"busesareus.org/internal/config"
	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
	"busesareus.org/internal/report"
	"busesareus.org/internal/utils"
)

// defaultRouteColor is what the GTFS parser reports when route_color is empty.
const defaultRouteColor = "FFFFFF"

// LoadSummary describes the outcome of loading a GTFS static bundle into a Store.
type LoadSummary struct {
	Stops        int
	Routes       int
	Patterns     int
	SkippedStops int
}

// Dataset holds the stops and routes built from a GTFS static bundle
// before they are swapped into a Store.
type Dataset struct {
	Stops   []*models.Stop
	Routes  []*models.Route
	Summary LoadSummary
}

// BuildDataset converts a parsed GTFS static bundle into stops and routes.
//
// Stop numbers come from stop_code, falling back to a numeric stop_id. Stops
// that have neither, stations and entrances, and stops without coordinates
// are skipped and counted. Trips link stops to the routes that serve them and
// contribute one pattern per distinct shape.
func BuildDataset(static *remoteGtfs.Static) (*Dataset, error) {
	if static == nil {
		return nil, fmt.Errorf("static data is nil")
	}

	ds := &Dataset{}
	routesByID := make(map[string]*models.Route, len(static.Routes))
	for i := range static.Routes {
		r := &static.Routes[i]
		number := r.ShortName
		if number == "" {
			number = r.Id
		}
		route := models.NewRoute(number, r.LongName)
		route.ID = r.Id
		route.Color = routeColor(r.Color)
		routesByID[r.Id] = route
		ds.Routes = append(ds.Routes, route)
	}

	stopsByID := make(map[string]*models.Stop, len(static.Stops))
	seenNumbers := make(map[int]struct{}, len(static.Stops))
	for i := range static.Stops {
		s := &static.Stops[i]
		if s.Type != 0 || s.Latitude == nil || s.Longitude == nil {
			ds.Summary.SkippedStops++
			continue
		}
		number, ok := stopNumber(s.Code, s.Id)
		if !ok {
			ds.Summary.SkippedStops++
			continue
		}
		if _, dup := seenNumbers[number]; dup {
			ds.Summary.SkippedStops++
			continue
		}
		location, err := geo.NewLatLon(*s.Latitude, *s.Longitude)
		if err != nil {
			ds.Summary.SkippedStops++
			continue
		}
		seenNumbers[number] = struct{}{}
		stop := models.NewStop(number, s.Name, location)
		stopsByID[s.Id] = stop
		ds.Stops = append(ds.Stops, stop)
	}

	for i := range static.Trips {
		trip := &static.Trips[i]
		if trip.Route == nil {
			continue
		}
		route, ok := routesByID[trip.Route.Id]
		if !ok {
			continue
		}
		for _, st := range trip.StopTimes {
			if st.Stop == nil {
				continue
			}
			if stop, ok := stopsByID[st.Stop.Id]; ok {
				stop.AddRoute(route)
			}
		}
		if trip.Shape != nil && len(trip.Shape.Points) >= 2 && route.Pattern(trip.Shape.ID) == nil {
			path := make([]geo.LatLon, 0, len(trip.Shape.Points))
			for _, p := range trip.Shape.Points {
				path = append(path, geo.LatLon{Lat: float64(p.Latitude), Lon: float64(p.Longitude)})
			}
			route.AddPattern(&models.RoutePattern{
				Name:        trip.Shape.ID,
				Destination: trip.Headsign,
				Direction:   tripDirection(trip),
				Path:        path,
			})
			ds.Summary.Patterns++
		}
	}

	ds.Summary.Stops = len(ds.Stops)
	ds.Summary.Routes = len(ds.Routes)
	return ds, nil
}

// tripDirection maps the parsed direction back to its direction_id column
// value. The parser stores "1" as 1, "0" as 2 and a missing value as 0.
func tripDirection(trip *remoteGtfs.ScheduledTrip) string {
	switch trip.DirectionId {
	case 1:
		return "1"
	case 2:
		return "0"
	}
	return ""
}

// LoadStatic builds a dataset from static and swaps it into store.
func LoadStatic(store *Store, static *remoteGtfs.Static) (LoadSummary, error) {
	ds, err := BuildDataset(static)
	if err != nil {
		return LoadSummary{}, err
	}
	store.Replace(ds.Stops, ds.Routes)
	return ds.Summary, nil
}

// ParseStatic parses a zipped GTFS static bundle.
func ParseStatic(data []byte) (*remoteGtfs.Static, error) {
	static, err := remoteGtfs.ParseStatic(data, remoteGtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse GTFS static data: %w", err)
	}
	return static, nil
}

// ReadStaticFile reads and parses a GTFS static bundle from disk.
func ReadStaticFile(path string) (*remoteGtfs.Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GTFS bundle %s: %w", path, err)
	}
	return ParseStatic(data)
}

// DownloadStatic fetches the raw GTFS static bundle from url, retrying with backoff.
func DownloadStatic(ctx context.Context, client *http.Client, url string, maxRetries int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err = fmt.Errorf("failed to create request for %s: %w", url, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags: utils.MakeMap("url", url),
		})
		return nil, err
	}

	resp, err := config.DoWithBackoff(ctx, client, req, maxRetries)
	if err != nil {
		err = fmt.Errorf("failed to make GET request to %s: %w", url, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("url", url),
			Level: sentry.LevelError,
		})
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected response status %d when downloading GTFS bundle from %s", resp.StatusCode, url)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags: utils.MakeMap("url", url),
			ExtraContext: map[string]interface{}{
				"status": resp.Status,
			},
		})
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read GTFS bundle response body from %s: %w", url, err)
		report.ReportError(err)
		return nil, err
	}
	return data, nil
}

func stopNumber(code, id string) (int, bool) {
	for _, candidate := range []string{code, id} {
		if candidate == "" {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(candidate)); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

func routeColor(c string) string {
	c = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(c), "#"))
	if c == "" || c == defaultRouteColor || len(c) != 6 {
		return ""
	}
	if _, err := strconv.ParseUint(c, 16, 32); err != nil {
		return ""
	}
	return "#" + c
}
