package transit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	remoteGtfs "github.com/jamespfennell/gtfs"
	"busesareus.org/internal/report"
	"busesareus.org/internal/utils"
)

// DefaultMaxRetries is used when a TransitService is created without a
// positive retry bound. Downloads are never retried without limit.
const DefaultMaxRetries = 3

// TransitService loads GTFS static bundles into a Store and keeps them fresh.
type TransitService struct {
	Store      *Store
	Logger     *slog.Logger
	Client     *http.Client
	MaxRetries int
	// CacheDir keeps the last downloaded bundle so a restart can serve
	// stops while the feed host is unreachable. Empty disables the cache.
	CacheDir string
}

// NewTransitService creates a TransitService.
func NewTransitService(store *Store, logger *slog.Logger, client *http.Client, maxRetries int, cacheDir string) *TransitService {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &TransitService{
		Store:      store,
		Logger:     logger,
		Client:     client,
		MaxRetries: maxRetries,
		CacheDir:   cacheDir,
	}
}

// LoadFromFile parses the bundle at path and swaps it into the store.
func (ts *TransitService) LoadFromFile(path string) (LoadSummary, error) {
	static, err := ReadStaticFile(path)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", path),
			Level: sentry.LevelError,
		})
		return LoadSummary{}, err
	}
	return ts.load(static, path)
}

// LoadFromURL downloads the bundle at url and swaps it into the store. When the
// download fails and a cached copy exists, the cached copy is loaded instead.
func (ts *TransitService) LoadFromURL(ctx context.Context, url string) (LoadSummary, error) {
	data, err := DownloadStatic(ctx, ts.Client, url, ts.MaxRetries)
	if err != nil {
		if ts.CacheDir == "" {
			return LoadSummary{}, err
		}
		cached, cacheErr := utils.GetLastCachedFile(ts.CacheDir, utils.CachePrefix(url))
		if cacheErr != nil {
			return LoadSummary{}, err
		}
		ts.Logger.Warn("GTFS download failed, using cached bundle", "url", url, "cache_file", cached, "error", err)
		return ts.LoadFromFile(cached)
	}

	static, err := ParseStatic(data)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("url", url),
			Level: sentry.LevelError,
		})
		return LoadSummary{}, err
	}

	if ts.CacheDir != "" {
		if err := utils.CreateCacheDirectory(ts.CacheDir, ts.Logger); err == nil {
			if _, err := utils.WriteCachedFile(ts.CacheDir, utils.CachePrefix(url), data); err != nil {
				ts.Logger.Warn("Failed to cache GTFS bundle", "cache_dir", ts.CacheDir, "error", err)
			}
		}
	}

	return ts.load(static, url)
}

func (ts *TransitService) load(static *remoteGtfs.Static, source string) (LoadSummary, error) {
	summary, err := LoadStatic(ts.Store, static)
	if err != nil {
		return LoadSummary{}, fmt.Errorf("failed to load GTFS bundle from %s: %w", source, err)
	}
	ts.Logger.Info("Loaded GTFS static bundle",
		"source", source,
		"stops", summary.Stops,
		"routes", summary.Routes,
		"patterns", summary.Patterns,
		"skipped_stops", summary.SkippedStops,
	)
	return summary, nil
}

// RefreshStatic reloads the bundle from url at every interval until ctx is cancelled.
// Failed refreshes keep the previously loaded data.
func (ts *TransitService) RefreshStatic(ctx context.Context, url string, interval time.Duration, onLoad func(LoadSummary)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			ts.Logger.Info("Stopping GTFS bundle refresh routine")
			return
		case <-ticker.C:
			ts.Logger.Info("Refreshing GTFS bundle", "url", url)
			summary, err := ts.LoadFromURL(ctx, url)
			if err != nil {
				ts.Logger.Error("Failed to refresh GTFS bundle", "url", url, "error", err)
				continue
			}
			if onLoad != nil {
				onLoad(summary)
			}
		}
	}
}
