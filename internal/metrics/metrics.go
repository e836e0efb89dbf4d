package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for backend requests
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"    // success:false from the backend
	OutcomeStatus    = "http_error" // non-2xx response
	OutcomeTransport = "transport_error"
	OutcomeDecode    = "decode_error"
)

// ClientMetrics tracks calls made to the analysis backend
type ClientMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewClientMetrics registers backend request metrics with reg, or with the
// default registerer when reg is nil.
func NewClientMetrics(namespace string, reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &ClientMetrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Requests sent to the analysis backend by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of analysis backend requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"endpoint"}),
	}
}

// Observe records one finished request
func (m *ClientMetrics) Observe(endpoint, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(endpoint, outcome).Inc()
	m.Duration.WithLabelValues(endpoint).Observe(seconds)
}

// BatchMetrics tracks batch tasks processed by the worker
type BatchMetrics struct {
	Tasks     *prometheus.CounterVec
	QueueWait prometheus.Histogram
}

// NewBatchMetrics registers batch worker metrics with reg, or with the default
// registerer when reg is nil.
func NewBatchMetrics(namespace string, reg prometheus.Registerer) *BatchMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &BatchMetrics{
		Tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_tasks_total",
			Help:      "Batch tasks processed by kind and result status.",
		}, []string{"kind", "status"}),
		QueueWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_queue_wait_seconds",
			Help:      "Time batch tasks spent queued before processing.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}
}

// RecordTask records one processed batch task
func (m *BatchMetrics) RecordTask(kind, status string, waitSeconds float64) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(kind, status).Inc()
	if waitSeconds > 0 {
		m.QueueWait.Observe(waitSeconds)
	}
}
