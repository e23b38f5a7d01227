// Package metrics provides Prometheus metrics for the clinic backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	PaymentsRecorded     prometheus.Counter
	RefundsIssued        prometheus.Counter
	DebtsSettled         prometheus.Counter
	ConsultationsEnded   prometheus.Counter
	PrescriptionsCreated prometheus.Counter
	DispensingSent       prometheus.Counter
	DispensingSendFailed prometheus.Counter
	WebhookEvents        *prometheus.CounterVec
	WebhookUnknownEvents prometheus.Counter
	PharmacyRequestSecs  prometheus.Histogram
	CircuitBreakerState  *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		PaymentsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payments_recorded_total",
			Help: "Total payments recorded against bills and debts",
		}),
		RefundsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refunds_issued_total",
			Help: "Total refunds issued",
		}),
		DebtsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "debts_settled_total",
			Help: "Total debts settled in full",
		}),
		ConsultationsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consultations_ended_total",
			Help: "Total consultations completed",
		}),
		PrescriptionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescriptions_created_total",
			Help: "Total prescriptions created",
		}),
		DispensingSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispensing_orders_sent_total",
			Help: "Total dispensing orders accepted by a pharmacy",
		}),
		DispensingSendFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispensing_orders_send_failed_total",
			Help: "Total dispensing order sends that failed",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_webhook_events_total",
			Help: "Pharmacy webhook events received by event type",
		}, []string{"event"}),
		WebhookUnknownEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_webhook_unknown_events_total",
			Help: "Pharmacy webhook events with an unrecognized type",
		}),
		PharmacyRequestSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pharmacy_request_duration_seconds",
			Help:    "Outbound pharmacy API request duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.PaymentsRecorded,
		m.RefundsIssued,
		m.DebtsSettled,
		m.ConsultationsEnded,
		m.PrescriptionsCreated,
		m.DispensingSent,
		m.DispensingSendFailed,
		m.WebhookEvents,
		m.WebhookUnknownEvents,
		m.PharmacyRequestSecs,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
