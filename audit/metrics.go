package audit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink is not a Sink in the masked-payload sense (it never receives
// Request/Response bodies) but records the same counts/latencies/error
// classifications the teacher's handler layer logged ad hoc per provider,
// now keyed uniformly by flow and connector id.
type MetricsSink struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetricsSink registers its collectors against reg. Pass
// prometheus.DefaultRegisterer to wire into the default /metrics handler.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	m := &MetricsSink{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payflow_connector_requests_total",
			Help: "Total connector calls by flow and connector id.",
		}, []string{"flow", "connector_id"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payflow_connector_errors_total",
			Help: "Total connector call failures by flow, connector id and error code.",
		}, []string{"flow", "connector_id", "error_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payflow_connector_latency_ms",
			Help:    "Connector call latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}, []string{"flow", "connector_id"}),
	}
	reg.MustRegister(m.requests, m.errors, m.latency)
	return m
}

func (m *MetricsSink) Write(_ context.Context, ev Event) error {
	m.requests.WithLabelValues(ev.Flow, ev.ConnectorID).Inc()
	m.latency.WithLabelValues(ev.Flow, ev.ConnectorID).Observe(float64(ev.ProcessingMs))
	if ev.ErrorCode != "" {
		m.errors.WithLabelValues(ev.Flow, ev.ConnectorID, ev.ErrorCode).Inc()
	}
	return nil
}
