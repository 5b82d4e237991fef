package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObaApiStatus API Status (up/down)
	ObaApiStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oba_api_status",
			Help: "Status of the OneBusAway API Server used to resolve stops (0 = not working, 1 = working)",
		},
		[]string{"server_url"},
	)
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "busesareus_http_requests_total",
		Help: "Number of HTTP requests served, by route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "busesareus_http_request_duration_seconds",
		Help:    "Duration of HTTP requests served",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	OutgoingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "busesareus_outgoing_request_duration_seconds",
		Help:    "Latency of outgoing HTTP requests to upstream providers",
		Buckets: prometheus.DefBuckets,
	}, []string{"url", "method", "status"})
)

var (
	VisibleStops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "busesareus_visible_stops",
		Help:    "Number of stop markers returned per visible-area request",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	VisibleSegments = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "busesareus_visible_segments",
		Help:    "Number of route segments returned per visible-area request",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	NearestSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "busesareus_nearest_stop_searches_total",
		Help: "Nearest stop searches, by result (hit = a stop within the radius, miss = none)",
	}, []string{"result"})
)

var (
	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "busesareus_provider_errors_total",
		Help: "Bus location provider failures, by provider and reason",
	}, []string{"provider", "reason"})

	ProviderCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "busesareus_provider_cache_results_total",
		Help: "Bus location response cache lookups, by result (hit or miss)",
	}, []string{"result"})
)

var (
	StoreStops = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "busesareus_store_stops",
		Help: "Number of stops held in the store",
	})

	StoreRoutes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "busesareus_store_routes",
		Help: "Number of routes held in the store",
	})

	StaticLastLoad = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "busesareus_gtfs_static_last_load_timestamp_seconds",
		Help: "Unix time of the last successful GTFS static load",
	})
)

// RecordStoreSize updates the store size gauges.
func RecordStoreSize(stops, routes int) {
	StoreStops.Set(float64(stops))
	StoreRoutes.Set(float64(routes))
}
