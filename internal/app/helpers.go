package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"busesareus.org/internal/geo"
	"busesareus.org/internal/report"
	"busesareus.org/internal/utils"
)

type envelope map[string]interface{}

func (app *Application) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		app.Logger.Error("Failed to encode response", "error", err)
	}
}

func (app *Application) errorResponse(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, envelope{"error": message})
}

func (app *Application) badRequestResponse(w http.ResponseWriter, err error) {
	app.errorResponse(w, http.StatusBadRequest, err.Error())
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
		Tags: utils.MakeMap("path", r.URL.Path),
	})
	app.errorResponse(w, http.StatusInternalServerError, "the server encountered a problem and could not process the request")
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, http.StatusNotFound, "the requested resource could not be found")
}

func (app *Application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, http.StatusMethodNotAllowed, fmt.Sprintf("the %s method is not supported for this resource", r.Method))
}

func readFloat(qs url.Values, key string) (float64, error) {
	s := qs.Get(key)
	if s == "" {
		return 0, fmt.Errorf("missing query parameter %q", key)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("query parameter %q must be a number", key)
	}
	return f, nil
}

func readLatLon(qs url.Values, latKey, lonKey string) (geo.LatLon, error) {
	lat, err := readFloat(qs, latKey)
	if err != nil {
		return geo.LatLon{}, err
	}
	lon, err := readFloat(qs, lonKey)
	if err != nil {
		return geo.LatLon{}, err
	}
	ll, err := geo.NewLatLon(lat, lon)
	if err != nil {
		return geo.LatLon{}, fmt.Errorf("%s/%s: %w", latKey, lonKey, err)
	}
	return ll, nil
}

// readOptionalLatLon returns nil when neither key is present.
func readOptionalLatLon(qs url.Values, latKey, lonKey string) (*geo.LatLon, error) {
	if qs.Get(latKey) == "" && qs.Get(lonKey) == "" {
		return nil, nil
	}
	ll, err := readLatLon(qs, latKey, lonKey)
	if err != nil {
		return nil, err
	}
	return &ll, nil
}

func readViewport(qs url.Values) (geo.Viewport, error) {
	nw, err := readLatLon(qs, "nw_lat", "nw_lon")
	if err != nil {
		return geo.Viewport{}, err
	}
	se, err := readLatLon(qs, "se_lat", "se_lon")
	if err != nil {
		return geo.Viewport{}, err
	}
	return geo.NewViewport(nw, se)
}

func readZoom(qs url.Values) (int, error) {
	s := qs.Get("zoom")
	if s == "" {
		return 0, fmt.Errorf("missing query parameter %q", "zoom")
	}
	zoom, err := strconv.Atoi(s)
	if err != nil || zoom < 0 || zoom > 30 {
		return 0, fmt.Errorf("query parameter %q must be an integer between 0 and 30", "zoom")
	}
	return zoom, nil
}

func readScale(qs url.Values, def float64) (float64, error) {
	if qs.Get("scale") == "" {
		return def, nil
	}
	scale, err := readFloat(qs, "scale")
	if err != nil {
		return 0, err
	}
	if !(scale > 0) || scale > 10 {
		return 0, fmt.Errorf("query parameter %q must be greater than 0 and at most 10", "scale")
	}
	return scale, nil
}
