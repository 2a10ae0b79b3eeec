package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest outcomes recorded in EventsTotal
const (
	StatusAccepted     = "accepted"
	StatusInvalid      = "invalid"
	StatusStoreError   = "error_store"
	StatusSummaryError = "error_summary"
	StatusUnauthorized = "unauthorized"
)

// IngestMetrics holds the Prometheus metrics of the ingestion pipeline.
// A nil *IngestMetrics is valid and records nothing.
type IngestMetrics struct {
	EventsTotal        *prometheus.CounterVec
	EventsByLevel      *prometheus.CounterVec
	RequestsByKey      *prometheus.CounterVec
	SummaryUpsertTime  prometheus.Histogram
	ReconcileRunsTotal *prometheus.CounterVec
}

// NewIngestMetrics creates the metrics and registers them with reg
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	factory := promauto.With(reg)
	return &IngestMetrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deep_logs",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of submitted log events by outcome.",
		}, []string{"status"}), // status: accepted, invalid, error_store, error_summary, unauthorized
		EventsByLevel: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deep_logs",
			Subsystem: "ingest",
			Name:      "events_by_level_total",
			Help:      "Total number of persisted log events by level.",
		}, []string{"level"}),
		RequestsByKey: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deep_logs",
			Subsystem: "ingest",
			Name:      "requests_by_key_total",
			Help:      "Total number of authenticated ingestion requests by device key name.",
		}, []string{"key"}),
		SummaryUpsertTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "deep_logs",
			Subsystem: "summary",
			Name:      "upsert_duration_seconds",
			Help:      "Latency of daily summary upserts.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconcileRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deep_logs",
			Subsystem: "summary",
			Name:      "reconcile_runs_total",
			Help:      "Total number of daily summary rebuilds by result.",
		}, []string{"result"}),
	}
}

// Event records one ingestion outcome
func (m *IngestMetrics) Event(status string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(status).Inc()
}

// Level records a persisted event of the given level
func (m *IngestMetrics) Level(level string) {
	if m == nil {
		return
	}
	m.EventsByLevel.WithLabelValues(level).Inc()
}

// KeyUse records an ingestion request authenticated with the named device key
func (m *IngestMetrics) KeyUse(name string) {
	if m == nil {
		return
	}
	m.RequestsByKey.WithLabelValues(name).Inc()
}

// ObserveUpsert records how long a summary upsert took
func (m *IngestMetrics) ObserveUpsert(started time.Time) {
	if m == nil {
		return
	}
	m.SummaryUpsertTime.Observe(time.Since(started).Seconds())
}

// Reconcile records the result of a summary rebuild
func (m *IngestMetrics) Reconcile(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.ReconcileRunsTotal.WithLabelValues(result).Inc()
}
