// Package observability holds the Prometheus metrics of the service.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the full metric set under one namespace (midgard_metrics by default).
type Metrics struct {
	// Ingestion metrics
	PagesFetched     *prometheus.CounterVec
	RecordsPersisted *prometheus.CounterVec
	RecordsSkipped   *prometheus.CounterVec
	RecordsFailed    *prometheus.CounterVec
	Checkpoint       *prometheus.GaugeVec

	// Run metrics
	IngestionRuns     *prometheus.CounterVec
	IngestionDuration *prometheus.HistogramVec
	SchedulerTicks    *prometheus.CounterVec

	// Upstream metrics
	UpstreamLatency *prometheus.HistogramVec
	UpstreamErrors  *prometheus.CounterVec

	// Query metrics
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// Storage backends
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Liveness
	LastSuccessfulIngestion prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "midgard_metrics"
	}
	factory := promauto.With(reg)

	return &Metrics{
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "pages_fetched_total",
			Help:      "Total number of upstream history pages fetched",
		}, []string{"family"}),
		RecordsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_persisted_total",
			Help:      "Total number of interval records stored",
		}, []string{"family"}),
		RecordsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_skipped_total",
			Help:      "Total number of interval records skipped as still open",
		}, []string{"family"}),
		RecordsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_failed_total",
			Help:      "Total number of interval records dropped by reason",
		}, []string{"family", "reason"}),
		Checkpoint: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "checkpoint_seconds",
			Help:      "Last persisted end time per stream",
		}, []string{"family", "pool"}),

		IngestionRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs by status",
		}, []string{"family", "status"}),
		IngestionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "run_duration_seconds",
			Help:      "Ingestion run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"family"}),
		SchedulerTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of scheduler ticks by status",
		}, []string{"status"}),

		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "midgard",
			Name:      "request_latency_seconds",
			Help:      "Midgard history request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "midgard",
			Name:      "request_errors_total",
			Help:      "Total number of failed Midgard requests",
		}, []string{"endpoint"}),

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "History query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"family", "interval"}),
		QueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "errors_total",
			Help:      "Total number of rejected or failed history queries",
		}, []string{"family"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulIngestion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last ingestion tick without failures",
		}),
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics backs the Record* helpers.
var DefaultMetrics = NewMetrics("")

// RecordPage counts one fetched upstream page.
func RecordPage(family string) {
	DefaultMetrics.PagesFetched.WithLabelValues(family).Inc()
}

// RecordPersisted counts stored records.
func RecordPersisted(family string, n int) {
	DefaultMetrics.RecordsPersisted.WithLabelValues(family).Add(float64(n))
}

// RecordSkipped counts intervals dropped because they could not be parsed.
func RecordSkipped(family string, n int) {
	DefaultMetrics.RecordsSkipped.WithLabelValues(family).Add(float64(n))
}

// RecordFailed counts a dropped record.
func RecordFailed(family, reason string) {
	DefaultMetrics.RecordsFailed.WithLabelValues(family, reason).Inc()
}

// UpdateCheckpoint sets the checkpoint gauge for a stream.
func UpdateCheckpoint(family, pool string, position int64) {
	DefaultMetrics.Checkpoint.WithLabelValues(family, pool).Set(float64(position))
}

// RecordIngestionRun records a finished ingestion run.
func RecordIngestionRun(family, status string, durationSeconds float64) {
	DefaultMetrics.IngestionRuns.WithLabelValues(family, status).Inc()
	DefaultMetrics.IngestionDuration.WithLabelValues(family).Observe(durationSeconds)
}

// RecordSchedulerTick records a scheduler tick. A tick without failures
// also moves the last successful ingestion timestamp.
func RecordSchedulerTick(status string, unix int64) {
	DefaultMetrics.SchedulerTicks.WithLabelValues(status).Inc()
	if status == "success" {
		DefaultMetrics.LastSuccessfulIngestion.Set(float64(unix))
	}
}

// RecordUpstreamLatency records a Midgard request.
func RecordUpstreamLatency(endpoint string, seconds float64, err error) {
	DefaultMetrics.UpstreamLatency.WithLabelValues(endpoint).Observe(seconds)
	if err != nil {
		DefaultMetrics.UpstreamErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordQuery records a history query.
func RecordQuery(family, interval string, seconds float64, err error) {
	DefaultMetrics.QueryDuration.WithLabelValues(family, interval).Observe(seconds)
	if err != nil {
		DefaultMetrics.QueryErrors.WithLabelValues(family).Inc()
	}
}

// RecordDBQuery observes one storage call; a non-nil err also counts an error.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
