package telemetry

import "github.com/prometheus/client_golang/prometheus"

var SeatAdmissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "licensed",
		Subsystem: "seat",
		Name:      "admissions_total",
		Help:      "Total number of seat admission decisions by outcome and role.",
	},
	[]string{"outcome", "role"},
)

var SeatActiveGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "licensed",
		Subsystem: "seat",
		Name:      "active",
		Help:      "Currently active seats by role, for the customer most recently recomputed.",
	},
	[]string{"role"},
)

var SeatReapedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "licensed",
		Subsystem: "seat",
		Name:      "reaped_total",
		Help:      "Total number of stale active connections deleted by the reaper.",
	},
)

var CredentialOperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "licensed",
		Subsystem: "vault",
		Name:      "operations_total",
		Help:      "Total number of credential vault operations by kind and result.",
	},
	[]string{"operation", "result"},
)

var CredentialRefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "licensed",
		Subsystem: "vault",
		Name:      "refresh_total",
		Help:      "Total number of OAuth2 credential refresh attempts by result.",
	},
	[]string{"result"},
)

var SSOSessionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "licensed",
		Subsystem: "sso",
		Name:      "sessions_total",
		Help:      "Total number of SSO sessions created, expired, or revoked.",
	},
	[]string{"event"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "licensed",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// All returns all application metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		SeatAdmissionsTotal,
		SeatActiveGauge,
		SeatReapedTotal,
		CredentialOperationsTotal,
		CredentialRefreshTotal,
		SSOSessionsTotal,
		HTTPRequestDuration,
	}
}
