package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Verification metrics
	VerificationRejectsTotal *prometheus.CounterVec

	// Event metrics
	EventsTotal *prometheus.CounterVec

	// Dispatch metrics
	DispatchTotal          *prometheus.CounterVec
	HandlerDurationSeconds *prometheus.HistogramVec
	WebhookDurationSeconds *prometheus.HistogramVec

	// Rule set metrics
	RuleReloadsTotal *prometheus.CounterVec
	RulesLoaded      prometheus.Gauge

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		VerificationRejectsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_verification_rejects_total",
				Help: "Total number of inbound requests rejected by signature verification",
			},
			[]string{"reason"}, // reason: signature_mismatch, stale_request, malformed_request
		),

		EventsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_events_total",
				Help: "Total number of classified events by kind",
			},
			[]string{"kind"}, // kind: message, mention, interactive_action, lifecycle
		),

		DispatchTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_dispatch_total",
				Help: "Total number of dispatch outcomes by rule and status",
			},
			[]string{"rule", "status"}, // status: completed, failed, timeout, unmatched, skipped_self
		),

		HandlerDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_handler_duration_seconds",
				Help:    "Handler invocation duration in seconds by handler kind",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, // Matches handler timeout ceiling
			},
			[]string{"handler_kind"}, // handler_kind: script, prompt
		),

		WebhookDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_webhook_duration_seconds",
				Help:    "End-to-end webhook processing duration in seconds by event kind",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"kind"},
		),

		RuleReloadsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_rule_reloads_total",
				Help: "Total number of rule set reload attempts by status",
			},
			[]string{"status"}, // status: success, error
		),

		RulesLoaded: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_rules_loaded",
				Help: "Number of rules in the active rule set",
			},
		),

		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_errors_total",
				Help: "Total HTTP errors by type and endpoint",
			},
			[]string{"error_type", "endpoint"}, // error_type: unauthorized, bad_payload, etc.
		),
	}

	return m
}

// RecordVerificationReject records a rejected inbound request
func (m *Metrics) RecordVerificationReject(reason string) {
	m.VerificationRejectsTotal.WithLabelValues(reason).Inc()
}

// RecordEvent records a classified event
func (m *Metrics) RecordEvent(kind string) {
	m.EventsTotal.WithLabelValues(kind).Inc()
}

// RecordDispatch records a dispatch outcome
func (m *Metrics) RecordDispatch(rule, status string) {
	m.DispatchTotal.WithLabelValues(rule, status).Inc()
}

// RecordHandlerDuration records handler invocation duration
func (m *Metrics) RecordHandlerDuration(handlerKind string, seconds float64) {
	m.HandlerDurationSeconds.WithLabelValues(handlerKind).Observe(seconds)
}

// RecordWebhook records end-to-end webhook processing time for an event kind
func (m *Metrics) RecordWebhook(kind string, seconds float64) {
	m.WebhookDurationSeconds.WithLabelValues(kind).Observe(seconds)
}

// RecordRuleReload records a rule set reload attempt
func (m *Metrics) RecordRuleReload(status string) {
	m.RuleReloadsTotal.WithLabelValues(status).Inc()
}

// SetRulesLoaded sets the active rule count gauge
func (m *Metrics) SetRulesLoaded(n int) {
	m.RulesLoaded.Set(float64(n))
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, endpoint string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}
