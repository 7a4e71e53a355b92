// Package metrics holds the Prometheus collectors for the data and
// authentication layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Connect attempt results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Authentication outcomes. Only operators see these; callers always get the
// same failure.
const (
	AuthSuccess  = "success"
	AuthMissing  = "missing_credentials"
	AuthUnknown  = "unknown_email"
	AuthMismatch = "wrong_password"
	AuthError    = "internal_error"
)

// Metrics bundles the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ConnectAttempts *prometheus.CounterVec
	TaleViews       prometheus.Counter
	EventsDropped   prometheus.Counter
	AuthAttempts    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kathaghar",
			Name:      "db_connect_attempts_total",
			Help:      "Database connection attempts by result.",
		}, []string{"result"}),
		TaleViews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kathaghar",
			Name:      "tale_views_total",
			Help:      "Tale view increments applied.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kathaghar",
			Name:      "analytics_events_dropped_total",
			Help:      "Analytics events that failed to append after their primary write succeeded.",
		}),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kathaghar",
			Name:      "auth_attempts_total",
			Help:      "Credential verification attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectAttempts, m.TaleViews, m.EventsDropped, m.AuthAttempts)
	}
	return m
}

// ObserveConnect counts one dial attempt.
func (m *Metrics) ObserveConnect(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.ConnectAttempts.WithLabelValues(result).Inc()
}

// ObserveView counts one applied view increment.
func (m *Metrics) ObserveView() {
	if m == nil {
		return
	}
	m.TaleViews.Inc()
}

// ObserveDroppedEvent counts one analytics event lost after its primary write.
func (m *Metrics) ObserveDroppedEvent() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// ObserveAuth counts one credential verification by outcome.
func (m *Metrics) ObserveAuth(outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(outcome).Inc()
}

// Handler exposes a registry for scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
