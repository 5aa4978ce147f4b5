// Package metric defines the Prometheus metrics for the integration
// delivery pipeline and queue worker.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all delivery-level metrics.
type Metrics struct {
	// Pipeline metrics
	AttemptsTotal  *prometheus.CounterVec
	SendDuration   *prometheus.HistogramVec
	PayloadBytes   *prometheus.HistogramVec
	CancelledTotal *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec

	// Queue metrics
	JobsReceived    *prometheus.CounterVec
	JobsRedelivered *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all delivery metrics
func NewMetrics() *Metrics {
	return &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formie",
				Subsystem: "delivery",
				Name:      "attempts_total",
				Help:      "Total number of integration send attempts by terminal state",
			},
			[]string{"integration", "state"},
		),

		SendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "formie",
				Subsystem: "delivery",
				Name:      "send_duration_seconds",
				Help:      "Outbound HTTP send duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"integration"},
		),

		PayloadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "formie",
				Subsystem: "delivery",
				Name:      "payload_bytes",
				Help:      "Serialized payload size in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"integration"},
		),

		CancelledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formie",
				Subsystem: "delivery",
				Name:      "cancelled_total",
				Help:      "Total number of attempts cancelled before sending",
			},
			[]string{"integration", "reason"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formie",
				Subsystem: "delivery",
				Name:      "errors_total",
				Help:      "Total number of errors by class",
			},
			[]string{"integration", "class"},
		),

		JobsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formie",
				Subsystem: "queue",
				Name:      "jobs_received_total",
				Help:      "Total number of send jobs consumed from the queue",
			},
			[]string{"integration"},
		),

		JobsRedelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formie",
				Subsystem: "queue",
				Name:      "jobs_redelivered_total",
				Help:      "Total number of send jobs negatively acknowledged for redelivery",
			},
			[]string{"integration"},
		),
	}
}

// Register registers all metrics with the given registry
func (m *Metrics) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		m.AttemptsTotal,
		m.SendDuration,
		m.PayloadBytes,
		m.CancelledTotal,
		m.ErrorsTotal,
		m.JobsReceived,
		m.JobsRedelivered,
	}

	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns an HTTP handler exposing the registry in Prometheus
// exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
