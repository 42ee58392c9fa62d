package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	writesTotal      *prometheus.CounterVec
	heartbeatsTotal  *prometheus.CounterVec
	validationFailed *prometheus.CounterVec
	dedupTotal       *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a recorder registered against reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		writesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorlink_writes_total",
				Help: "Outbound decision writes by task and result",
			},
			[]string{"task", "result"},
		),
		heartbeatsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorlink_heartbeats_total",
				Help: "Heartbeats sent or received by status and result",
			},
			[]string{"status", "result"},
		),
		validationFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorlink_validation_failures_total",
				Help: "Payloads rejected by contract validation",
			},
			[]string{"schema"},
		),
		dedupTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorlink_idempotent_replays_total",
				Help: "Writes skipped because their idempotency key was already seen",
			},
			[]string{"task"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendorlink_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vendorlink_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordWrite(task, result string) {
	r.writesTotal.WithLabelValues(task, result).Inc()
}

func (r *Recorder) RecordHeartbeat(status, result string) {
	r.heartbeatsTotal.WithLabelValues(status, result).Inc()
}

func (r *Recorder) RecordValidationFailure(schema string) {
	r.validationFailed.WithLabelValues(schema).Inc()
}

func (r *Recorder) RecordReplay(task string) {
	r.dedupTotal.WithLabelValues(task).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
