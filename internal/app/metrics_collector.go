package app

import (
	"context"
	"time"

	"busesareus.org/internal/metrics"
)

const metricsCollectionInterval = 30 * time.Second

// obaServer is implemented by resolvers that can report the health of their upstream.
type obaServer interface {
	metrics.Pinger
	BaseURL() string
}

// StartMetricsCollection refreshes the store and upstream gauges every
// interval until ctx is cancelled.
func (app *Application) StartMetricsCollection(ctx context.Context) {
	ticker := time.NewTicker(metricsCollectionInterval)
	go func() {
		defer ticker.Stop()
		app.CollectMetrics(ctx)
		for {
			select {
			case <-ctx.Done():
				app.Logger.Info("Stopping metrics collection routine")
				return
			case <-ticker.C:
				app.CollectMetrics(ctx)
			}
		}
	}()
}

// CollectMetrics updates the gauges that are sampled rather than counted.
func (app *Application) CollectMetrics(ctx context.Context) {
	metrics.RecordStoreSize(app.Store.Len())

	server, ok := app.Resolver.(obaServer)
	if !ok {
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := metrics.ServerPing(pingCtx, server, server.BaseURL()); err != nil {
		app.Logger.Error("OneBusAway server is not answering", "oba_base_url", server.BaseURL(), "error", err)
	}
}
