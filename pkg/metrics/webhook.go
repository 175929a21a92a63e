package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records reconciliation outcomes per gateway.
type WebhookMetrics struct {
	duration    *prometheus.HistogramVec
	received    *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	activations *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_reconcile_duration_seconds",
		Help:    "Duration of webhook reconciliation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_received_total",
		Help: "Webhook deliveries received, valid or not.",
	}, []string{"gateway"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_outcome_total",
		Help: "Webhook reconciliation outcomes.",
	}, []string{"gateway", "outcome"})
	activations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_activation_total",
		Help: "Enrollments activated from approved payments.",
	}, []string{"gateway"})
	reg.MustRegister(duration, received, outcomes, activations)
	return &WebhookMetrics{
		duration:    duration,
		received:    received,
		outcomes:    outcomes,
		activations: activations,
	}
}

// ObserveDuration records how long the reconciliation took.
func (m *WebhookMetrics) ObserveDuration(gateway string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(gateway)).Observe(duration.Seconds())
}

// IncReceived counts a delivery before any validation.
func (m *WebhookMetrics) IncReceived(gateway string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncOutcome counts a reconciliation outcome such as activated,
// duplicate, ignored, unmatched, or failed.
func (m *WebhookMetrics) IncOutcome(gateway, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}

// IncActivation counts a successful enrollment activation.
func (m *WebhookMetrics) IncActivation(gateway string) {
	if m == nil || m.activations == nil {
		return
	}
	m.activations.WithLabelValues(normalizeLabel(gateway)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
