package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"busesareus.org/internal/middleware"
)

// Routes registers every endpoint and wraps the router with the logging,
// Sentry and security header middlewares.
//
//	GET    /v1/healthcheck
//	GET    /metrics
//	GET    /v1/stops/visible
//	GET    /v1/stops/nearest
//	GET    /v1/routes/visible
//	GET    /v1/selection
//	PUT    /v1/selection/:stopNo
//	DELETE /v1/selection
//	GET    /v1/buses
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	handle := func(method, path string, h http.HandlerFunc) {
		router.Handler(method, path, middleware.Instrument(path, h))
	}

	handle(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", middleware.NewCachedPromHandler(ctx, prometheus.DefaultGatherer, 10*time.Second))

	handle(http.MethodGet, "/v1/stops/visible", app.visibleStopsHandler)
	handle(http.MethodGet, "/v1/stops/nearest", app.nearestStopHandler)
	handle(http.MethodGet, "/v1/routes/visible", app.visibleRoutesHandler)
	handle(http.MethodGet, "/v1/selection", app.showSelectionHandler)
	handle(http.MethodPut, "/v1/selection/:stopNo", app.selectStopHandler)
	handle(http.MethodDelete, "/v1/selection", app.clearSelectionHandler)
	handle(http.MethodGet, "/v1/buses", app.busesHandler)

	handler := middleware.RequestLogger(app.Logger, router)
	handler = middleware.SentryMiddleware(handler)
	return middleware.SecurityHeaders(handler)
}
