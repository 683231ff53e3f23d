package metrics

import (
	"time"

	"github.com/gridglance/gridglance/pkg/types"
	"github.com/gridglance/gridglance/pkg/valuecache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes provider activity as Prometheus metrics. It satisfies
// valuecache.Observer.
type Recorder struct {
	fetchesTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	value        *prometheus.GaugeVec
	fallback     *prometheus.GaugeVec
}

var _ valuecache.Observer = (*Recorder)(nil)

// New creates a Recorder registering its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridglance_fetches_total",
				Help: "Total number of feed fetches by outcome",
			},
			[]string{"feed", "outcome"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridglance_errors_total",
				Help: "Total number of queries that returned no value",
			},
			[]string{"feed", "kind"},
		),
		fetchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridglance_fetch_duration_seconds",
				Help:    "Duration of feed fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"feed"},
		),
		value: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gridglance_value",
				Help: "Last value served for a feed",
			},
			[]string{"feed"},
		),
		fallback: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gridglance_fallback",
				Help: "1 if the last value served came from a forecast",
			},
			[]string{"feed"},
		),
	}
}

// ObserveFetch records a fetch. An empty kind means it succeeded.
func (r *Recorder) ObserveFetch(feed, kind string, took time.Duration) {
	outcome := kind
	if outcome == "" {
		outcome = "success"
	}
	r.fetchesTotal.WithLabelValues(feed, outcome).Inc()
	r.fetchLatency.WithLabelValues(feed).Observe(took.Seconds())
}

// ObserveError records a query that returned no value.
func (r *Recorder) ObserveError(feed, kind string) {
	r.errorsTotal.WithLabelValues(feed, kind).Inc()
}

// ObserveReading records the value served.
func (r *Recorder) ObserveReading(reading types.Reading) {
	r.value.WithLabelValues(reading.Feed).Set(reading.Value)
	var fallback float64
	if reading.Fallback {
		fallback = 1
	}
	r.fallback.WithLabelValues(reading.Feed).Set(fallback)
}
