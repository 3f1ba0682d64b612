package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "river_level"

// Metrics holds the Prometheus counters, histograms, and gauges for the refresh pipeline.
type Metrics struct {
	// Refresh cycle metrics.
	Refreshes        *prometheus.CounterVec // labels: outcome={success,fetch_error,store_error,skipped}
	RefreshDuration  prometheus.Histogram
	RefresherRunning prometheus.Gauge

	// Feed metrics.
	FetchDuration prometheus.Histogram
	FetchErrors   prometheus.Counter
	PointsParsed  prometheus.Counter
	PointsAdded   prometheus.Counter
	PointsPruned  prometheus.Counter

	// Cache metrics.
	CachedPoints   prometheus.Gauge
	CacheSizeBytes prometheus.Gauge
	LastRefresh    prometheus.Gauge

	// Status metrics.
	CurrentLevel  prometheus.Gauge
	CurrentStatus prometheus.Gauge // 0 safe, 1 unsafe, -1 unknown

	// Event publishing metrics.
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh attempts by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-merge-persist cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresher_running",
			Help:      "1 when scheduled refreshes are active, 0 when shut down.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Feed download duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_errors_total",
			Help:      "Feed downloads that failed at the transport level.",
		}),
		PointsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_parsed_total",
			Help:      "Points parsed from feed bodies.",
		}),
		PointsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_added_total",
			Help:      "Timestamps added to the cache by merges.",
		}),
		PointsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_pruned_total",
			Help:      "Points dropped for exceeding the retention horizon.",
		}),
		CachedPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_points",
			Help:      "Points currently held in the cache.",
		}),
		CacheSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size_bytes",
			Help:      "Serialized size of the last persisted snapshot.",
		}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		CurrentLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_level_metres",
			Help:      "Representative river level used for the current status.",
		}),
		CurrentStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_status",
			Help:      "0 safe, 1 unsafe, -1 unknown.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Refresh events written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Refresh events that failed to publish.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Refreshes,
		m.RefreshDuration,
		m.RefresherRunning,
		m.FetchDuration,
		m.FetchErrors,
		m.PointsParsed,
		m.PointsAdded,
		m.PointsPruned,
		m.CachedPoints,
		m.CacheSizeBytes,
		m.LastRefresh,
		m.CurrentLevel,
		m.CurrentStatus,
		m.EventsPublished,
		m.PublishErrors,
	}
}
