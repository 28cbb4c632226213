package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the refresh job, the model and the map.
type Metrics struct {
	RefreshRuns     *prometheus.CounterVec // labels: status={ok,empty,failed}
	ListingsFetched prometheus.Counter
	ListingsDropped prometheus.Counter
	RefreshDuration prometheus.Histogram
	Predictions     prometheus.Counter
	MapRenderErrors prometheus.Counter
	ModelReady      prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshRuns,
		m.ListingsFetched,
		m.ListingsDropped,
		m.RefreshDuration,
		m.Predictions,
		m.MapRenderErrors,
		m.ModelReady,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emlak",
			Name:      "refresh_runs_total",
			Help:      "Refresh job runs by outcome.",
		}, []string{"status"}),
		ListingsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emlak",
			Name:      "listings_fetched_total",
			Help:      "Raw listings scraped from the classifieds site.",
		}),
		ListingsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emlak",
			Name:      "listings_dropped_total",
			Help:      "Raw listings rejected by the normalizer.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "emlak",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-clean-write refresh.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Predictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emlak",
			Name:      "predictions_total",
			Help:      "Price estimates served.",
		}),
		MapRenderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emlak",
			Name:      "map_render_errors_total",
			Help:      "Failed choropleth renders.",
		}),
		ModelReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "emlak",
			Name:      "model_ready",
			Help:      "1 once the price model has been trained.",
		}),
	}
}
