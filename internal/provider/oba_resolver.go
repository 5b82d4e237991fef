package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	onebusaway "github.com/OneBusAway/go-sdk"
	"github.com/OneBusAway/go-sdk/option"
	"busesareus.org/internal/geo"
	"busesareus.org/internal/models"
	"busesareus.org/internal/transit"
)

// RouteLookup finds routes already known to the application.
type RouteLookup interface {
	Route(number string) (*models.Route, bool)
	RouteByID(id string) (*models.Route, bool)
}

// OBAStopResolver looks up stops that are missing from the GTFS bundle on a
// OneBusAway server. OneBusAway ids are prefixed with the agency id, so stop
// 51479 of agency "1" is "1_51479".
type OBAStopResolver struct {
	client   *onebusaway.Client
	baseURL  string
	agencyID string
	routes   RouteLookup
}

func NewOBAStopResolver(httpClient *http.Client, baseURL, apiKey, agencyID string, routes RouteLookup) *OBAStopResolver {
	client := onebusaway.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	return &OBAStopResolver{
		client:   client,
		baseURL:  baseURL,
		agencyID: agencyID,
		routes:   routes,
	}
}

// BaseURL returns the server the resolver talks to.
func (r *OBAStopResolver) BaseURL() string {
	return r.baseURL
}

func (r *OBAStopResolver) stopID(number int) string {
	if r.agencyID == "" {
		return strconv.Itoa(number)
	}
	return r.agencyID + "_" + strconv.Itoa(number)
}

func (r *OBAStopResolver) localID(id string) string {
	if r.agencyID == "" {
		return id
	}
	return strings.TrimPrefix(id, r.agencyID+"_")
}

// Resolve fetches the name, location and serving routes of a stop. Routes
// already known are reused; others are created without patterns. A stop the
// server does not know yields transit.ErrStopNotFound.
func (r *OBAStopResolver) Resolve(ctx context.Context, number int) (*models.Stop, error) {
	id := r.stopID(number)

	stopResp, err := r.client.Stop.Get(ctx, id)
	if err != nil {
		var apiErr *onebusaway.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("stop %s on %s: %w", id, r.baseURL, transit.ErrStopNotFound)
		}
		return nil, fmt.Errorf("%w: failed to fetch stop %s: %w", ErrProviderUnavailable, id, err)
	}
	if stopResp == nil || stopResp.Data.Entry.ID == "" {
		return nil, fmt.Errorf("stop %s on %s: %w", id, r.baseURL, transit.ErrStopNotFound)
	}

	entry := stopResp.Data.Entry
	location, err := geo.NewLatLon(entry.Lat, entry.Lon)
	if err != nil {
		return nil, fmt.Errorf("%w: stop %s: %w", ErrMalformedResponse, id, err)
	}
	stop := models.NewStop(number, entry.Name, location)

	schedule, err := r.client.ScheduleForStop.Get(ctx, id, onebusaway.ScheduleForStopGetParams{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch schedule for stop %s: %w", ErrProviderUnavailable, id, err)
	}
	if schedule == nil {
		return stop, nil
	}
	for _, s := range schedule.Data.Entry.StopRouteSchedules {
		stop.AddRoute(r.route(r.localID(s.RouteID)))
	}
	return stop, nil
}

func (r *OBAStopResolver) route(id string) *models.Route {
	if r.routes != nil {
		if route, ok := r.routes.RouteByID(id); ok {
			return route
		}
		if route, ok := r.routes.Route(id); ok {
			return route
		}
	}
	return models.NewRoute(id, "")
}

// Ping checks that the server answers its current-time endpoint.
func (r *OBAStopResolver) Ping(ctx context.Context) error {
	_, err := r.client.CurrentTime.Get(ctx)
	return err
}
