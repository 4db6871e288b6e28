// Package metrics exports webhook delivery outcomes as Prometheus series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mattjoyce/hookgate/internal/webhook"
)

// Delivery outcomes used as the "outcome" label.
const (
	OutcomeAccepted = "accepted"
)

// Metrics implements webhook.Observer on top of Prometheus collectors.
type Metrics struct {
	DeliveriesTotal *prometheus.CounterVec
	HandlerFailures *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
	SSEClients      prometheus.Gauge
}

var _ webhook.Observer = (*Metrics)(nil)

// New registers the hookgate collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		DeliveriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hookgate_deliveries_total",
			Help: "Webhook deliveries received, by event and outcome.",
		}, []string{"event", "outcome"}),

		HandlerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hookgate_handler_failures_total",
			Help: "Handler invocations that returned an error or panicked.",
		}, []string{"event", "handler"}),

		HandlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hookgate_handler_duration_seconds",
			Help:    "Duration of handler invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event"}),

		SSEClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "hookgate_sse_clients_active",
			Help: "Number of connected event stream clients.",
		}),
	}
}

// DeliveryRejected counts a delivery that never reached a handler. Rejected
// deliveries are unauthenticated, so the event label is left empty.
func (m *Metrics) DeliveryRejected(reason string) {
	m.DeliveriesTotal.WithLabelValues("", reason).Inc()
}

func (m *Metrics) DeliveryAccepted(kind webhook.EventKind, _ string, _ int) {
	m.DeliveriesTotal.WithLabelValues(kind.String(), OutcomeAccepted).Inc()
}

func (m *Metrics) HandlerFinished(kind webhook.EventKind, _, handler string, elapsed time.Duration, err error) {
	m.HandlerDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
	if err != nil {
		m.HandlerFailures.WithLabelValues(kind.String(), handler).Inc()
	}
}
