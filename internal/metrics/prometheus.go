// Package metrics exposes Prometheus counters for authentication outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "outcome"},
	)

	authBlockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_blocked_total",
			Help: "Total number of attempts vetoed by the fraud signal",
		},
	)

	authRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_rate_limited_total",
			Help: "Total number of attempts refused by the rate limiter",
		},
	)

	lockoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_lockouts_total",
			Help: "Total number of method-level lockouts",
		},
		[]string{"method"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_sessions_active",
			Help: "Number of sessions currently held in the in-memory index",
		},
	)

	securityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_events_total",
			Help: "Total number of security events recorded",
		},
		[]string{"kind"},
	)

	riskScoreObserved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auth_risk_score",
			Help:    "Observed device risk scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)
)

func RecordAuthAttempt(method, outcome string) {
	authAttemptsTotal.WithLabelValues(method, outcome).Inc()
}

func RecordBlocked() {
	authBlockedTotal.Inc()
}

func RecordRateLimited() {
	authRateLimitedTotal.Inc()
}

func RecordLockout(method string) {
	lockoutsTotal.WithLabelValues(method).Inc()
}

func SetActiveSessions(n int) {
	sessionsActive.Set(float64(n))
}

func RecordSecurityEvent(kind string) {
	securityEventsTotal.WithLabelValues(kind).Inc()
}

func ObserveRiskScore(score float64) {
	riskScoreObserved.Observe(score)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
