package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	loginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "userhub_login_success_total",
		Help: "Total number of successful logins",
	})
	loginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "userhub_login_failure_total",
		Help: "Total number of failed login attempts",
	})
	registrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "userhub_registrations_total",
		Help: "Total number of self-service registrations",
	})
	activitiesRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "userhub_activities_recorded_total",
		Help: "Total number of audit records written",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(loginSuccessTotal, loginFailureTotal, registrationsTotal, activitiesRecordedTotal)
}

// IncLoginSuccess increments the successful logins counter.
func IncLoginSuccess() { loginSuccessTotal.Inc() }

// IncLoginFailure increments the failed logins counter.
func IncLoginFailure() { loginFailureTotal.Inc() }

// IncRegistration increments the registrations counter.
func IncRegistration() { registrationsTotal.Inc() }

// IncActivityRecorded increments the audit records counter.
func IncActivityRecorded() { activitiesRecordedTotal.Inc() }
