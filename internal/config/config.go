package config

import (
	"sync"
	"time"
)

const (
	DefaultTranslinkHost      = "api.translink.ca"
	DefaultSearchRadiusMeters = 10000
	DefaultRedisTTLSeconds    = 30
	DefaultRenderScale        = 1.0
	DefaultStaticRefresh      = 24 * time.Hour
	ProviderRTTI              = "rtti"
	ProviderGTFSRealtime      = "gtfs-rt"
)

// Config holds all the configuration settings for our application.
// Port and Env come from flags; Settings come from the config file or URL
// and may be replaced at runtime by the refresh routine.
type Config struct {
	Port     int
	Env      string
	Mu       sync.RWMutex
	Settings Settings
}

// Settings is the file/URL/environment backed part of the configuration.
type Settings struct {
	Provider           string            `mapstructure:"provider" validate:"oneof=rtti gtfs-rt"`
	Translink          TranslinkSettings `mapstructure:"translink"`
	GTFS               GTFSSettings      `mapstructure:"gtfs"`
	OBA                OBASettings       `mapstructure:"oba"`
	Redis              RedisSettings     `mapstructure:"redis"`
	SearchRadiusMeters float64           `mapstructure:"search_radius_meters" validate:"gt=0"`
	Render             RenderSettings    `mapstructure:"render"`
	Logging            LoggingSettings   `mapstructure:"logging"`
}

// TranslinkSettings configures the RTTI bus location provider.
type TranslinkSettings struct {
	Host   string `mapstructure:"host" validate:"required"`
	APIKey string `mapstructure:"api_key"`
}

// GTFSSettings configures where stops, routes and realtime vehicles come from.
type GTFSSettings struct {
	StaticURL           string        `mapstructure:"static_url" validate:"omitempty,url"`
	StaticPath          string        `mapstructure:"static_path"`
	RealtimeURL         string        `mapstructure:"realtime_url" validate:"omitempty,url"`
	RealtimeHeaderKey   string        `mapstructure:"realtime_header_key"`
	RealtimeHeaderValue string        `mapstructure:"realtime_header_value"`
	RefreshInterval     time.Duration `mapstructure:"refresh_interval"`
	CacheDir            string        `mapstructure:"cache_dir"`
}

// OBASettings configures the optional OneBusAway stop resolver.
type OBASettings struct {
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey   string `mapstructure:"api_key"`
	AgencyID string `mapstructure:"agency_id"`
}

// RedisSettings configures the bus location response cache. An empty Addr
// selects the in-memory cache.
type RedisSettings struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db" validate:"gte=0"`
	TTLSeconds int    `mapstructure:"ttl_seconds" validate:"gte=1"`
}

// RenderSettings holds display parameters of the map client.
type RenderSettings struct {
	Scale float64 `mapstructure:"scale" validate:"gt=0"`
}

// LoggingSettings selects the slog handler.
type LoggingSettings struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// RedisTTL returns the cache TTL as a duration.
func (s Settings) RedisTTL() time.Duration {
	return time.Duration(s.Redis.TTLSeconds) * time.Second
}

// DefaultSettings returns the settings used when a key is absent.
func DefaultSettings() Settings {
	return Settings{
		Provider:           ProviderRTTI,
		Translink:          TranslinkSettings{Host: DefaultTranslinkHost},
		GTFS:               GTFSSettings{RefreshInterval: DefaultStaticRefresh},
		Redis:              RedisSettings{TTLSeconds: DefaultRedisTTLSeconds},
		SearchRadiusMeters: DefaultSearchRadiusMeters,
		Render:             RenderSettings{Scale: DefaultRenderScale},
		Logging:            LoggingSettings{Level: "info", Format: "text"},
	}
}

// NewConfig creates a new instance of a Config struct.
func NewConfig(port int, env string, settings Settings) *Config {
	return &Config{
		Port:     port,
		Env:      env,
		Settings: settings,
	}
}

// UpdateConfig safely replaces the settings.
func (cfg *Config) UpdateConfig(settings Settings) {
	cfg.Mu.Lock()
	defer cfg.Mu.Unlock()
	cfg.Settings = settings
}

// GetSettings safely returns a copy of the current settings.
// This method should be used to access the settings from other parts of the application.
func (cfg *Config) GetSettings() Settings {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return cfg.Settings
}
