// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Login outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid_credentials"
	OutcomeLocked       = "locked"
	OutcomeStorageError = "storage_error"
)

// Metrics groups the application's collectors on a private registry so tests
// can build as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	LoginAttempts    *prometheus.CounterVec
	Lockouts         prometheus.Counter
	Registrations    prometheus.Counter
	RateLimitRejects *prometheus.CounterVec
}

// New registers all collectors, including Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secureauth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secureauth",
			Name:      "account_lockouts_total",
			Help:      "Accounts that transitioned to locked.",
		}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secureauth",
			Name:      "registrations_total",
			Help:      "Accounts created.",
		}),
		RateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secureauth",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter, by rule.",
		}, []string{"rule"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LoginAttempts,
		m.Lockouts,
		m.Registrations,
		m.RateLimitRejects,
	)
	return m
}

// ObserveLogin counts a login attempt. Safe on a nil receiver.
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveLockout counts an account transitioning to locked. Safe on a nil receiver.
func (m *Metrics) ObserveLockout() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

// ObserveRegistration counts a created account. Safe on a nil receiver.
func (m *Metrics) ObserveRegistration() {
	if m == nil {
		return
	}
	m.Registrations.Inc()
}

// ObserveRateLimited counts a rejected request. Safe on a nil receiver.
func (m *Metrics) ObserveRateLimited(rule string) {
	if m == nil {
		return
	}
	m.RateLimitRejects.WithLabelValues(rule).Inc()
}
