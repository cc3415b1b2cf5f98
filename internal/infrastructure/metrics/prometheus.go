package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curvestat_events_total",
			Help: "Curve events applied to the aggregator, by kind",
		},
		[]string{"kind"},
	)

	duplicateEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curvestat_duplicate_events_total",
			Help: "Redelivered chain logs dropped by the deduplicator",
		},
	)

	anomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curvestat_anomalies_total",
			Help: "Unexpected but tolerated conditions, by type",
		},
		[]string{"type"},
	)

	handlerPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curvestat_handler_panics_total",
			Help: "Recovered panics in event handlers",
		},
	)

	ledgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curvestat_ledger_size",
			Help: "Trades currently held in the in-memory ledger",
		},
	)

	currentStep = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curvestat_current_step",
			Help: "Latest known price step of the curve",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curvestat_http_requests_total",
			Help: "HTTP requests served, by path and status code",
		},
		[]string{"path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curvestat_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"path"},
	)
)

// Anomaly types.
const (
	AnomalyDuplicateGraduation = "duplicate_graduation"
	AnomalyDecodeFailure       = "decode_failure"
	AnomalyArchiveFailure      = "archive_failure"
)

func RecordEvent(kind string) {
	eventsTotal.WithLabelValues(kind).Inc()
}

func RecordDuplicate() {
	duplicateEventsTotal.Inc()
}

func RecordAnomaly(kind string) {
	anomaliesTotal.WithLabelValues(kind).Inc()
}

func RecordHandlerPanic() {
	handlerPanicsTotal.Inc()
}

func SetLedgerSize(n int) {
	ledgerSize.Set(float64(n))
}

func SetCurrentStep(step uint64) {
	currentStep.Set(float64(step))
}

// RecordHTTPRequest counts one served request and observes its latency.
func RecordHTTPRequest(path string, code int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}
