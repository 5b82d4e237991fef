package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/julienschmidt/httprouter"
	"busesareus.org/internal/geo"
	"busesareus.org/internal/metrics"
	"busesareus.org/internal/models"
	"busesareus.org/internal/provider"
	"busesareus.org/internal/report"
	"busesareus.org/internal/transit"
	"busesareus.org/internal/utils"
	"busesareus.org/internal/visibility"
)

// HealthStatus is the body of /v1/healthcheck. The service is ready once at
// least one stop has been loaded.
type HealthStatus struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Stops       int    `json:"stops"`
	Routes      int    `json:"routes"`
	Ready       bool   `json:"ready"`
}

// healthcheckHandler answers 503 until the store holds stops.
func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	stops, routes := app.Store.Len()
	status := HealthStatus{
		Status:      "available",
		Environment: app.Config.Env,
		Version:     app.Version,
		Stops:       stops,
		Routes:      routes,
		Ready:       stops > 0,
	}

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	app.writeJSON(w, code, status)
}

type stopResponse struct {
	StopNo   int          `json:"stop_no"`
	Name     string       `json:"name"`
	Position geo.MapPoint `json:"position"`
	Routes   []string     `json:"routes"`
}

func newStopResponse(stop *models.Stop) *stopResponse {
	if stop == nil {
		return nil
	}
	routes := make([]string, 0, len(stop.Routes))
	for _, r := range stop.Routes {
		routes = append(routes, r.Number)
	}
	return &stopResponse{
		StopNo:   stop.Number,
		Name:     stop.Name,
		Position: geo.ToMapPoint(stop.Location),
		Routes:   routes,
	}
}

type visibleStopsResponse struct {
	Markers       []*visibility.Marker `json:"markers"`
	Nearest       *visibility.Marker   `json:"nearest"`
	ClusterRadius int                  `json:"cluster_radius"`
}

func (app *Application) visibleStopsHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	viewport, err := readViewport(qs)
	if err != nil {
		app.badRequestResponse(w, err)
		return
	}
	zoom, err := readZoom(qs)
	if err != nil {
		app.badRequestResponse(w, err)
		return
	}
	location, err := readOptionalLatLon(qs, "lat", "lon")
	if err != nil {
		app.badRequestResponse(w, err)
		return
	}

	settings := app.Config.GetSettings()
	// Inputs are validated above, so what remains is bad stored data.
	idx, err := visibility.MarkStops(app.Store, viewport, location, zoom, settings.SearchRadiusMeters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	metrics.VisibleStops.Observe(float64(idx.Len()))
	if location != nil {
		recordNearestSearch(idx.Nearest() != nil)
	}

	app.writeJSON(w, http.StatusOK, visibleStopsResponse{
		Markers:       idx.Markers(),
		Nearest:       idx.Nearest(),
		ClusterRadius: visibility.ClusterRadius(zoom),
	})
}

type nearestResponse struct {
	Stop      *stopResponse `json:"stop"`
	DistanceM *float64      `json:"distance_m,omitempty"`
}

func (app *Application) nearestStopHandler(w http.ResponseWriter, r *http.Request) {
	location, err := readLatLon(r.URL.Query(), "lat", "lon")
	if err != nil {
		app.badRequestResponse(w, err)
		return
	}

	nearest, ok, err := visibility.FindNearest(app.Store, location, app.Config.GetSettings().SearchRadiusMeters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	recordNearestSearch(ok)
	if !ok {
		app.writeJSON(w, http.StatusOK, nearestResponse{})
		return
	}
	app.writeJSON(w, http.StatusOK, nearestResponse{
		Stop:      newStopResponse(nearest.Stop),
		DistanceM: &nearest.DistanceMeters,
	})
}

func recordNearestSearch(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.NearestSearches.WithLabelValues(result).Inc()
}

func (app *Application) visibleRoutesHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	viewport, err := readViewport(qs)
	if err != nil {
		app.badRequestResponse(w, err)
		return
	}
	zoom, err := readZoom(qs)
	if err != nil {
		app.badRequestResponse(w, err)
		return
	}
	scale, err := readScale(qs, app.Config.GetSettings().Render.Scale)
	if err != nil {
		app.badRequestResponse(w, err)
		return
	}

	overlay, err := visibility.VisibleSegments(app.Store, viewport, zoom, scale)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	metrics.VisibleSegments.Observe(float64(len(overlay.Segments)))
	app.writeJSON(w, http.StatusOK, overlay)
}

func (app *Application) showSelectionHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, envelope{"stop": newStopResponse(app.Store.Selected())})
}

// selectStopHandler selects a stop by number. A stop missing from the store is
// looked up through the resolver, when one is configured, and added first.
func (app *Application) selectStopHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	number, err := strconv.Atoi(params.ByName("stopNo"))
	if err != nil || number <= 0 {
		app.errorResponse(w, http.StatusBadRequest, "stop number must be a positive integer")
		return
	}

	if _, ok := app.Store.Stop(number); !ok {
		if app.Resolver == nil {
			app.notFoundResponse(w, r)
			return
		}
		stop, err := app.Resolver.Resolve(r.Context(), number)
		switch {
		case errors.Is(err, transit.ErrStopNotFound):
			app.notFoundResponse(w, r)
			return
		case err != nil:
			report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
				Tags:  utils.MakeMap("stop_no", strconv.Itoa(number)),
				Level: sentry.LevelWarning,
			})
			app.upstreamErrorResponse(w, r, err, number)
			return
		}
		if err := app.Store.AddStop(stop); err != nil {
			app.upstreamErrorResponse(w, r, err, number)
			return
		}
		app.Logger.Info("Resolved stop through OneBusAway", "stop_no", number, "name", stop.Name)
	}

	if err := app.Store.Select(number); err != nil {
		if errors.Is(err, transit.ErrStopNotFound) {
			app.notFoundResponse(w, r)
			return
		}
		app.serverErrorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"stop": newStopResponse(app.Store.Selected())})
}

func (app *Application) clearSelectionHandler(w http.ResponseWriter, r *http.Request) {
	app.Store.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

type busesResponse struct {
	StopNo int          `json:"stop_no"`
	Buses  []models.Bus `json:"buses"`
}

func (app *Application) busesHandler(w http.ResponseWriter, r *http.Request) {
	stop := app.Store.Selected()
	if stop == nil {
		app.errorResponse(w, http.StatusConflict, "no stop is selected")
		return
	}

	buses, err := app.Locator.Buses(r.Context(), stop)
	if err != nil {
		if errors.Is(err, provider.ErrProviderUnavailable) || errors.Is(err, provider.ErrMalformedResponse) {
			app.upstreamErrorResponse(w, r, err, stop.Number)
			return
		}
		app.serverErrorResponse(w, r, err)
		return
	}
	if buses == nil {
		buses = []models.Bus{}
	}
	app.writeJSON(w, http.StatusOK, busesResponse{StopNo: stop.Number, Buses: buses})
}

func (app *Application) upstreamErrorResponse(w http.ResponseWriter, r *http.Request, err error, stopNo int) {
	app.Logger.Warn("Upstream request failed", "path", r.URL.Path, "stop_no", stopNo, "error", err)
	app.errorResponse(w, http.StatusBadGateway, "the upstream data provider failed to answer")
}
