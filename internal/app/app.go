package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"busesareus.org/internal/config"
	"busesareus.org/internal/metrics"
	"busesareus.org/internal/models"
	"busesareus.org/internal/provider"
	"busesareus.org/internal/transit"
)

const (
	// providerMaxRetries bounds retries of transport failures on interactive requests.
	providerMaxRetries = 1
	// staticMaxRetries bounds retries of a GTFS bundle download, so an
	// unreachable feed host falls back to the cached bundle instead of
	// blocking startup.
	staticMaxRetries = 3
)

// StopResolver finds stops that are missing from the store.
type StopResolver interface {
	Resolve(ctx context.Context, number int) (*models.Stop, error)
}

// Application wires the configuration, the stop store and the providers
// together and serves the HTTP API.
type Application struct {
	Config   *config.Config
	Store    *transit.Store
	Transit  *transit.TransitService
	Locator  provider.BusLocator
	Resolver StopResolver
	Logger   *slog.Logger
	Version  string
}

// New creates and wires all dependencies for the Application.
func New(cfg *config.Config, logger *slog.Logger, client *http.Client, version string) *Application {
	settings := cfg.GetSettings()
	store := transit.NewStore()

	app := &Application{
		Config:  cfg,
		Store:   store,
		Transit: transit.NewTransitService(store, logger, client, staticMaxRetries, settings.GTFS.CacheDir),
		Locator: newBusLocator(cfg, client, logger),
		Logger:  logger,
		Version: version,
	}
	if settings.OBA.BaseURL != "" {
		app.Resolver = provider.NewOBAStopResolver(client, settings.OBA.BaseURL, settings.OBA.APIKey, settings.OBA.AgencyID, store)
	}
	return app
}

func newBusLocator(cfg *config.Config, client *http.Client, logger *slog.Logger) provider.BusLocator {
	settings := cfg.GetSettings()
	if settings.Provider == config.ProviderGTFSRealtime {
		p := provider.NewGTFSRealtimeBusProvider(client, settings.GTFS.RealtimeURL,
			settings.GTFS.RealtimeHeaderKey, settings.GTFS.RealtimeHeaderValue, settings.RedisTTL(), logger)
		p.MaxRetries = providerMaxRetries
		return p
	}
	return provider.NewRTTILocator(cfg, client, newResponseCache(settings, logger), logger, providerMaxRetries)
}

func newResponseCache(settings config.Settings, logger *slog.Logger) provider.ResponseCache {
	if settings.Redis.Addr == "" {
		return provider.NewMemoryCache()
	}
	logger.Info("Caching bus locations in Redis", "addr", settings.Redis.Addr, "db", settings.Redis.DB)
	return provider.NewRedisCache(settings.Redis.Addr, settings.Redis.Password, settings.Redis.DB)
}

// LoadStatic loads the configured GTFS static bundle into the store. A
// configured path takes precedence over the URL.
func (app *Application) LoadStatic(ctx context.Context) (transit.LoadSummary, error) {
	settings := app.Config.GetSettings()

	var (
		summary transit.LoadSummary
		err     error
	)
	switch {
	case settings.GTFS.StaticPath != "":
		summary, err = app.Transit.LoadFromFile(settings.GTFS.StaticPath)
	case settings.GTFS.StaticURL != "":
		summary, err = app.Transit.LoadFromURL(ctx, settings.GTFS.StaticURL)
	default:
		err = fmt.Errorf("no GTFS static source configured")
	}
	if err != nil {
		return transit.LoadSummary{}, err
	}
	app.recordLoad(summary)
	return summary, nil
}

// StartStaticRefresh reloads the bundle from the configured URL in the
// background. Bundles loaded from a file are not refreshed.
func (app *Application) StartStaticRefresh(ctx context.Context) {
	settings := app.Config.GetSettings()
	if settings.GTFS.StaticPath != "" || settings.GTFS.StaticURL == "" {
		return
	}
	interval := settings.GTFS.RefreshInterval
	if interval <= 0 {
		interval = config.DefaultStaticRefresh
	}
	go app.Transit.RefreshStatic(ctx, settings.GTFS.StaticURL, interval, app.recordLoad)
}

func (app *Application) recordLoad(summary transit.LoadSummary) {
	metrics.RecordStoreSize(app.Store.Len())
	metrics.StaticLastLoad.Set(float64(time.Now().Unix()))
}
