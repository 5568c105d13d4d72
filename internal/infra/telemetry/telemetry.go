package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for code checks and logins.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeMalformed   = "malformed"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeInactive    = "inactive"
)

// AuthMetrics groups the prometheus collectors describing authentication activity.
// A nil *AuthMetrics is valid and records nothing.
type AuthMetrics struct {
	codesIssued  prometheus.Counter
	codeChecks   *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	logins       *prometheus.CounterVec
	tokensIssued *prometheus.CounterVec
}

// NewAuthMetrics registers the authentication collectors with reg.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	factory := promauto.With(reg)

	return &AuthMetrics{
		codesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "short_codes_issued_total",
			Help:      "Total number of login short codes generated",
		}),
		codeChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "short_code_checks_total",
			Help:      "Total number of short code checks by outcome",
		}, []string{"outcome"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "rate_limited_total",
			Help:      "Total number of requests refused by a token bucket",
		}, []string{"bucket"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logins_total",
			Help:      "Total number of login attempts by method and outcome",
		}, []string{"method", "outcome"}),
		tokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "confirmation_tokens_issued_total",
			Help:      "Total number of signed confirmation tokens issued by kind",
		}, []string{"kind"}),
	}
}

// CodeIssued records a generated short code.
func (m *AuthMetrics) CodeIssued() {
	if m == nil {
		return
	}
	m.codesIssued.Inc()
}

// CodeChecked records the outcome of a short code check.
func (m *AuthMetrics) CodeChecked(outcome string) {
	if m == nil {
		return
	}
	m.codeChecks.WithLabelValues(outcome).Inc()
}

// RateLimited records a refusal by the named bucket.
func (m *AuthMetrics) RateLimited(bucket string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(bucket).Inc()
}

// Login records a login attempt.
func (m *AuthMetrics) Login(method, outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(method, outcome).Inc()
}

// TokenIssued records a signed confirmation token.
func (m *AuthMetrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}
