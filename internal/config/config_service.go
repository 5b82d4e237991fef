package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultConfigRefresh is how often a remote configuration is fetched again.
const DefaultConfigRefresh = time.Minute

// ConfigService holds the dependencies of the configuration operations.
type ConfigService struct {
	Logger     *slog.Logger
	Client     *http.Client
	Config     *Config
	MaxRetries int
}

// NewConfigService creates a new ConfigService instance with the provided logger and HTTP client.
func NewConfigService(logger *slog.Logger, client *http.Client, config *Config, maxRetries int) *ConfigService {
	return &ConfigService{
		Logger:     logger,
		Client:     client,
		Config:     config,
		MaxRetries: maxRetries,
	}
}

// RefreshConfig replaces the settings with the remote configuration every
// interval until ctx is cancelled.
func (cs *ConfigService) RefreshConfig(ctx context.Context, url, authUser, authPass string, interval time.Duration) {
	refreshConfig(ctx, cs.Client, url, authUser, authPass, cs.Config, cs.Logger, interval, cs.MaxRetries)
}

// LoadConfigFromFile reads settings from a JSON or YAML file.
func LoadConfigFromFile(filePath string) (Settings, error) {
	settings, err := loadConfigFromFile(filePath)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load config from file %s: %w", filePath, err)
	}
	return settings, nil
}

// LoadConfigFromURL fetches settings from a remote endpoint.
func (cs *ConfigService) LoadConfigFromURL(ctx context.Context, url, authUser, authPass string) (Settings, error) {
	settings, err := loadConfigFromURL(ctx, cs.Client, url, authUser, authPass, cs.MaxRetries)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load config from URL %s: %w", url, err)
	}
	return settings, nil
}
