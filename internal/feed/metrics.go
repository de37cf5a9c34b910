package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRankTotal     = "feed_rank_total"
	MetricRankErrors    = "feed_rank_errors_total"
	MetricRankDuration  = "feed_rank_duration_seconds"
	MetricRankBatchSize = "feed_rank_batch_size"
)

// Failure reasons recorded on MetricRankErrors.
const (
	ReasonInvalidItem = "invalid_item"
	ReasonScoring     = "scoring_failure"
)

// Metrics contains Prometheus metrics for ranking passes.
// All operations are thread-safe.
type Metrics struct {
	rankTotal     *prometheus.CounterVec
	rankErrors    *prometheus.CounterVec
	rankDuration  *prometheus.HistogramVec
	rankBatchSize *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rankTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRankTotal,
			Help: "Total number of successful feed ranking passes by mode",
		}, []string{"mode"}),
		rankErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRankErrors,
			Help: "Total number of failed feed ranking passes by mode and reason",
		}, []string{"mode", "reason"}),
		rankDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRankDuration,
			Help:    "Histogram of feed ranking pass duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"mode"}),
		rankBatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRankBatchSize,
			Help:    "Number of items per feed ranking pass",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k items
		}, []string{"mode"}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRank records a successful pass over n items.
func (m *Metrics) ObserveRank(mode string, n int, seconds float64) {
	m.rankTotal.WithLabelValues(mode).Inc()
	m.rankDuration.WithLabelValues(mode).Observe(seconds)
	m.rankBatchSize.WithLabelValues(mode).Observe(float64(n))
}

// IncRankErrors increments the failed pass counter.
func (m *Metrics) IncRankErrors(mode, reason string) {
	m.rankErrors.WithLabelValues(mode, reason).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rankTotal,
		m.rankErrors,
		m.rankDuration,
		m.rankBatchSize,
	}
}
