package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"busesareus.org/internal/config"
	"busesareus.org/internal/metrics"
	"busesareus.org/internal/models"
	"busesareus.org/internal/report"
	"busesareus.org/internal/utils"
)

const providerRTTI = "rtti"

// RTTILocator serves bus locations from the Translink RTTI API. Responses are
// cached per stop and an upstream that keeps failing is skipped until its
// backoff expires. Settings are read from cfg on every call so that a
// refreshed API key or host applies immediately.
type RTTILocator struct {
	cfg        *config.Config
	client     *http.Client
	cache      ResponseCache
	backoff    *config.BackoffStore
	logger     *slog.Logger
	maxRetries int
	now        func() time.Time
}

func NewRTTILocator(cfg *config.Config, client *http.Client, cache ResponseCache, logger *slog.Logger, maxRetries int) *RTTILocator {
	return &RTTILocator{
		cfg:        cfg,
		client:     client,
		cache:      cache,
		backoff:    config.NewBackoffStore(),
		logger:     logger,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func busesCacheKey(stopNo int) string {
	return "rtti:buses:" + strconv.Itoa(stopNo)
}

// Buses returns the buses serving stop.
func (l *RTTILocator) Buses(ctx context.Context, stop *models.Stop) ([]models.Bus, error) {
	if stop == nil {
		return nil, fmt.Errorf("no stop to locate buses for")
	}
	settings := l.cfg.GetSettings()
	host := settings.Translink.Host
	key := busesCacheKey(stop.Number)

	if data, ok, err := l.cache.Get(ctx, key); err != nil {
		l.logger.Warn("Bus location cache lookup failed", "stop_no", stop.Number, "error", err)
	} else if ok {
		metrics.ProviderCacheResults.WithLabelValues("hit").Inc()
		return ParseBuses(data)
	}
	metrics.ProviderCacheResults.WithLabelValues("miss").Inc()

	if l.backoff.ShouldSkip(host, l.now()) {
		metrics.ProviderErrors.WithLabelValues(providerRTTI, "backoff").Inc()
		return nil, fmt.Errorf("%w: %s is backing off after repeated failures", ErrProviderUnavailable, host)
	}

	p := NewHTTPBusLocationProvider(l.client, host, settings.Translink.APIKey, stop)
	p.MaxRetries = l.maxRetries
	data, err := p.DataSourceToBytes(ctx)
	if err != nil {
		if isNoBuses(err) {
			l.backoff.ResetBackoff(host)
			l.store(ctx, key, []byte("[]"), settings.RedisTTL())
			return []models.Bus{}, nil
		}
		if errors.Is(err, ErrProviderUnavailable) && ctx.Err() == nil {
			l.backoff.UpdateBackoff(host)
		}
		metrics.ProviderErrors.WithLabelValues(providerRTTI, "unavailable").Inc()
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("stop_no", strconv.Itoa(stop.Number)),
			Level: sentry.LevelWarning,
		})
		return nil, err
	}
	l.backoff.ResetBackoff(host)

	buses, err := ParseBuses(data)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(providerRTTI, "malformed").Inc()
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags: utils.MakeMap("stop_no", strconv.Itoa(stop.Number)),
			ExtraContext: map[string]interface{}{
				"body_bytes": len(data),
			},
		})
		return nil, err
	}

	l.store(ctx, key, data, settings.RedisTTL())
	l.logger.Debug("Fetched bus locations", "stop_no", stop.Number, "buses", len(buses))
	return buses, nil
}

func (l *RTTILocator) store(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := l.cache.Set(ctx, key, data, ttl); err != nil {
		l.logger.Warn("Failed to cache bus locations", "key", key, "error", err)
	}
}
