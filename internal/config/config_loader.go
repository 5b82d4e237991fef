package config

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"busesareus.org/internal/report"
	"busesareus.org/internal/utils"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. BUSESAREUS_TRANSLINK_API_KEY overrides translink.api_key.
const EnvPrefix = "BUSESAREUS"

var validate = validator.New()

// ValidateConfigFlags ensures that only one configuration source is specified:
// either a config file "--config-file", a remote config URL "--config-url".
//
// Returns an error if more than one input method is specified.
func ValidateConfigFlags(configFile, configURL *string) error {
	if *configFile == "" && *configURL == "" {
		return fmt.Errorf("no configuration provided, either --config-file or --config-url must be specified")
	}
	if (*configFile != "" && *configURL != "") || (*configFile != "" && len(flag.Args()) > 0) || (*configURL != "" && len(flag.Args()) > 0) {
		return fmt.Errorf("only one of --config-file or --config-url can be specified")
	}
	return nil
}

// LoadEnvFiles loads variables from the given .env files into the process
// environment. Missing files are ignored; existing variables are not overridden.
func LoadEnvFiles(logger *slog.Logger, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("No env file found", "file", f)
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
		logger.Info("Loaded env file", "file", f)
	}
	return nil
}

// newViper returns a viper instance with every key defaulted, so that
// environment overrides apply even to keys absent from the config source.
func newViper() *viper.Viper {
	d := DefaultSettings()
	v := viper.New()
	v.SetDefault("provider", d.Provider)
	v.SetDefault("translink.host", d.Translink.Host)
	v.SetDefault("translink.api_key", "")
	v.SetDefault("gtfs.static_url", "")
	v.SetDefault("gtfs.static_path", "")
	v.SetDefault("gtfs.realtime_url", "")
	v.SetDefault("gtfs.realtime_header_key", "")
	v.SetDefault("gtfs.realtime_header_value", "")
	v.SetDefault("gtfs.refresh_interval", d.GTFS.RefreshInterval.String())
	v.SetDefault("gtfs.cache_dir", "")
	v.SetDefault("oba.base_url", "")
	v.SetDefault("oba.api_key", "")
	v.SetDefault("oba.agency_id", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_seconds", d.Redis.TTLSeconds)
	v.SetDefault("search_radius_meters", d.SearchRadiusMeters)
	v.SetDefault("render.scale", d.Render.Scale)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// decodeSettings unmarshals and validates the settings held by v.
func decodeSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := ValidateSettings(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ValidateSettings checks struct constraints and that a stop source is configured.
func ValidateSettings(s Settings) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if s.GTFS.StaticURL == "" && s.GTFS.StaticPath == "" {
		return fmt.Errorf("invalid config: one of gtfs.static_url or gtfs.static_path is required")
	}
	if s.Provider == ProviderGTFSRealtime && s.GTFS.RealtimeURL == "" {
		return fmt.Errorf("invalid config: gtfs.realtime_url is required for provider %q", ProviderGTFSRealtime)
	}
	return nil
}

// LoadSettingsFromEnv builds settings from defaults and environment variables only.
func LoadSettingsFromEnv() (Settings, error) {
	return decodeSettings(newViper())
}

// refreshConfig periodically fetches configuration from a remote URL and
// replaces the application's settings.
//
// Errors during fetch or parse are logged and reported to Sentry, but the loop continues,
// ensuring resiliency in the presence of transient issues.
//
// The routine stops gracefully when the context is canceled.
func refreshConfig(ctx context.Context, client *http.Client, configURL, configAuthUser, configAuthPass string, cfg *Config, logger *slog.Logger, interval time.Duration, maxRetries int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping config refresh routine")
			return
		case <-ticker.C:
			settings, err := loadConfigFromURL(ctx, client, configURL, configAuthUser, configAuthPass, maxRetries)
			if err != nil {
				report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
					Tags:  utils.MakeMap("config_url", configURL),
					Level: sentry.LevelError,
				})
				logger.Error("Failed to refresh remote config", "error", err)
				continue
			}
			cfg.UpdateConfig(settings)
			logger.Info("Successfully refreshed configuration")
		}
	}
}

// loadConfigFromFile reads a JSON or YAML configuration file from disk.
// The format is taken from the file extension.
func loadConfigFromFile(filePath string) (Settings, error) {
	v := newViper()
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to read config file: %w", err)
	}

	settings, err := decodeSettings(v)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return Settings{}, err
	}
	return settings, nil
}

// loadConfigFromURL fetches a configuration from a remote HTTP(S) endpoint,
// using the provided client and optional basic authentication.
//
// The body is parsed as YAML when the content type or URL path says so, JSON otherwise.
func loadConfigFromURL(ctx context.Context, client *http.Client, url, authUser, authPass string, maxRetries int) (Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to create request: %w", err)
	}

	if authUser != "" && authPass != "" {
		req.SetBasicAuth(authUser, authPass)
	}

	resp, err := DoWithBackoff(ctx, client, req, maxRetries)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to fetch remote config: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("remote config returned status: %d", resp.StatusCode)
		report.ReportErrorWithSentryOptions(statusErr, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, statusErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to read remote config: %w", err)
	}

	v := newViper()
	v.SetConfigType(configType(resp.Header.Get("Content-Type"), req.URL.Path))
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, fmt.Errorf("failed to parse remote config: %w", err)
	}

	settings, err := decodeSettings(v)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, err
	}
	return settings, nil
}

func configType(contentType, urlPath string) string {
	if strings.Contains(contentType, "yaml") {
		return "yaml"
	}
	switch strings.ToLower(path.Ext(urlPath)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}
