package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"busesareus.org/internal/app"
	"busesareus.org/internal/config"
	"busesareus.org/internal/report"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

// configMaxRetries bounds retries when fetching a remote configuration.
const configMaxRetries = 3

func main() {
	var (
		port       = flag.Int("port", 4000, "API server port")
		env        = flag.String("env", "development", "Environment (development|staging|production)")
		configFile = flag.String("config-file", "", "Path to a local JSON or YAML configuration file")
		configURL  = flag.String("config-url", "", "URL to a remote JSON or YAML configuration file")
	)
	flag.Parse()

	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := config.LoadEnvFiles(bootLogger); err != nil {
		bootLogger.Error("Failed to load env files", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateConfigFlags(configFile, configURL); err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	configAuthUser := os.Getenv("CONFIG_AUTH_USER")
	configAuthPass := os.Getenv("CONFIG_AUTH_PASS")

	if err := report.SetupSentry(os.Getenv("SENTRY_DSN"), *env); err != nil {
		bootLogger.Error("Failed to initialize Sentry", "error", err)
		os.Exit(1)
	}
	defer report.FlushSentry()
	report.ConfigureScope(*env, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := app.NewPooledClient(app.DefaultClientTimeout)
	cfg := config.NewConfig(*port, *env, config.DefaultSettings())
	configService := config.NewConfigService(bootLogger, client, cfg, configMaxRetries)

	var (
		settings config.Settings
		err      error
	)
	if *configFile != "" {
		settings, err = config.LoadConfigFromFile(*configFile)
	} else {
		settings, err = configService.LoadConfigFromURL(ctx, *configURL, configAuthUser, configAuthPass)
	}
	if err != nil {
		bootLogger.Error("Failed to load configuration", "error", err)
		report.ReportError(err, sentry.LevelFatal)
		report.FlushSentry()
		os.Exit(1)
	}
	cfg.UpdateConfig(settings)

	logger := newLogger(settings.Logging)
	configService.Logger = logger

	application := app.New(cfg, logger, client, version)

	summary, err := application.LoadStatic(ctx)
	if err != nil {
		// The service stays up and reports not ready until a refresh succeeds.
		logger.Error("Failed to load GTFS static bundle", "error", err)
	} else {
		logger.Info("Stops loaded", "stops", summary.Stops, "routes", summary.Routes)
	}

	application.StartStaticRefresh(ctx)
	application.StartMetricsCollection(ctx)

	if *configURL != "" {
		go configService.RefreshConfig(ctx, *configURL, configAuthUser, configAuthPass, config.DefaultConfigRefresh)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting server", "addr", srv.Addr, "env", cfg.Env, "provider", settings.Provider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		report.ReportError(err, sentry.LevelFatal)
		report.FlushSentry()
		logger.Error(err.Error())
		os.Exit(1)
	}
}

// newLogger builds the slog logger selected by the logging settings.
func newLogger(s config.LoggingSettings) *slog.Logger {
	level := slog.LevelInfo
	switch s.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if s.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
