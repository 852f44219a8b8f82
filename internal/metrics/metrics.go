package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all geowidget metrics
const namespace = "geowidget"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Geocoding metrics

// GeocodingRequestsTotal tracks dispatcher requests by direction and outcome
var GeocodingRequestsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geocoding_requests_total",
		Help:      "Total number of geocoding requests",
	},
	[]string{"type", "outcome"}, // type: forward|reverse, outcome: success|not_found|rate_limited|unavailable|error
)

// GeocodingLatency tracks provider round-trip latency
var GeocodingLatency = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "geocoding_latency_seconds",
		Help:      "Geocoding provider latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"type"},
)

// Widget metrics

// WidgetSessionsActive tracks live widget sessions
var WidgetSessionsActive = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "widget_sessions_active",
		Help:      "Number of widget sessions currently connected",
	},
)

// WidgetEventsTotal counts inbound widget events by kind
var WidgetEventsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "widget_events_total",
		Help:      "Total number of widget events received",
	},
	[]string{"event"}, // event: click|dragend|search|select|locationfound|address_rerendered
)

// WidgetClicksSuppressedTotal counts map clicks dropped inside the post-selection window
var WidgetClicksSuppressedTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "widget_clicks_suppressed_total",
		Help:      "Total number of map clicks ignored while a search selection was settling",
	},
)

// WidgetStaleResultsTotal counts lookups discarded because a newer one was issued
var WidgetStaleResultsTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "widget_stale_results_total",
		Help:      "Total number of geocode results discarded because a newer request superseded them",
	},
)

// AddressBridgeTotal counts address sub-form population attempts by outcome
var AddressBridgeTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "address_bridge_total",
		Help:      "Total number of address sub-form population attempts",
	},
	[]string{"outcome"}, // outcome: applied|deferred|absent|no_address
)

var registerRuntime sync.Once

// Init registers runtime collectors and sets version information
func Init(version, commit, buildDate string) {
	registerRuntime.Do(func() {
		// Register default Go metrics (memory, goroutines, GC, etc.)
		Registry.MustRegister(collectors.NewGoCollector())

		// Register process metrics (CPU, memory, file descriptors)
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
