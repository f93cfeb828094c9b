package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters for one dispatch run. The binary is
// a batch job, so the counts double as the end-of-run summary.
type Metrics struct {
	RecordsFetched prometheus.Counter
	RecordsDropped prometheus.Counter

	NotificationsSent  *prometheus.CounterVec // labels: channel
	DeliveriesFailed   *prometheus.CounterVec // labels: channel
	DeliveriesSkipped  *prometheus.CounterVec // labels: channel (already delivered)
	TransportRetries   prometheus.Counter
	ReportCacheLookups *prometheus.CounterVec // labels: result={hit,miss,stale}
	EdgeAlertsFired    *prometheus.CounterVec // labels: edge
}

// NewMetrics creates and registers all run metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsFetched,
		m.RecordsDropped,
		m.NotificationsSent,
		m.DeliveriesFailed,
		m.DeliveriesSkipped,
		m.TransportRetries,
		m.ReportCacheLookups,
		m.EdgeAlertsFired,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warnmelder",
			Name:      "records_fetched_total",
			Help:      "Normalized records produced by the source adapters.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warnmelder",
			Name:      "records_dropped_total",
			Help:      "Upstream records dropped for missing or malformed fields.",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warnmelder",
			Name:      "notifications_sent_total",
			Help:      "Confirmed deliveries by channel.",
		}, []string{"channel"}),
		DeliveriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warnmelder",
			Name:      "deliveries_failed_total",
			Help:      "Deliveries rejected after exhausting retries, by channel.",
		}, []string{"channel"}),
		DeliveriesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warnmelder",
			Name:      "deliveries_skipped_total",
			Help:      "Deliveries skipped because the key was already committed.",
		}, []string{"channel"}),
		TransportRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warnmelder",
			Name:      "transport_retries_total",
			Help:      "HTTP attempts beyond the first, across all calls.",
		}),
		ReportCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warnmelder",
			Name:      "report_cache_lookups_total",
			Help:      "Situation-report cache lookups by result.",
		}, []string{"result"}),
		EdgeAlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warnmelder",
			Name:      "edge_alerts_fired_total",
			Help:      "Rising-edge alerts emitted by the hysteresis state machines.",
		}, []string{"edge"}),
	}
}
