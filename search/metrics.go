package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search result labels
const (
	resultFound  = "found"
	resultNoCode = "no_code"
	resultError  = "error"
)

// Metrics holds Prometheus metrics for creation block searches
type Metrics struct {
	// Counters (cumulative values)
	OracleCallsTotal *prometheus.CounterVec
	SearchesTotal    *prometheus.CounterVec

	// Histograms (distributions)
	SearchDuration *prometheus.HistogramVec

	// Gauges (current values)
	LastCreationBlock prometheus.Gauge
}

// NewMetrics creates search metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	if namespace == "" {
		namespace = "finder"
	}
	if subsystem == "" {
		subsystem = "search"
	}

	factory := promauto.With(reg)

	return &Metrics{
		OracleCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "oracle_calls_total",
			Help:      "Total number of RPC calls issued by searches, including prechecks and failed calls",
		}, []string{"strategy"}),
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "searches_total",
			Help:      "Total number of searches by outcome",
		}, []string{"strategy", "result"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Wall clock time of a complete search",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"strategy"}),
		LastCreationBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_creation_block",
			Help:      "Creation block reported by the most recent successful search",
		}),
	}
}

// observe records a finished search. calls counts every RPC call issued, including the
// ones made before a failure. Safe to call on a nil receiver.
func (m *Metrics) observe(strategy Strategy, outcome *Outcome, calls int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	label := strategy.String()
	m.SearchDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	m.OracleCallsTotal.WithLabelValues(label).Add(float64(calls))

	switch {
	case err != nil:
		m.SearchesTotal.WithLabelValues(label, resultError).Inc()
	case !outcome.IsContract:
		m.SearchesTotal.WithLabelValues(label, resultNoCode).Inc()
	default:
		m.SearchesTotal.WithLabelValues(label, resultFound).Inc()
		m.LastCreationBlock.Set(float64(outcome.Block))
	}
}
