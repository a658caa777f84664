package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Session lifecycle
	SessionsStarted prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionsActive  prometheus.Gauge

	// Evaluation
	EvalTotal    *prometheus.CounterVec
	EvalDuration prometheus.Histogram

	// Bootstrap
	IdentityFailures prometheus.Counter
}

// New creates metrics registered with the default registerer
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates metrics registered with a custom registerer,
// useful for tests that need isolated registries
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "termserve_sessions_started_total",
			Help: "Total terminal sessions started",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "termserve_sessions_closed_total",
			Help: "Total terminal sessions closed",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "termserve_sessions_active",
			Help: "Currently open terminal sessions",
		}),
		EvalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "termserve_eval_total",
			Help: "Expression evaluations by status",
		}, []string{"status"}),
		EvalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "termserve_eval_duration_seconds",
			Help:    "Expression evaluation duration",
			Buckets: prometheus.DefBuckets,
		}),
		IdentityFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "termserve_identity_failures_total",
			Help: "Sessions rejected because the login identity was missing or malformed",
		}),
	}
}

// SessionStarted records a new session
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// SessionClosed records a session teardown
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsClosed.Inc()
	m.SessionsActive.Dec()
}

// EvalObserved records one evaluation with its outcome
func (m *Metrics) EvalObserved(d time.Duration, status string) {
	if m == nil {
		return
	}
	m.EvalTotal.WithLabelValues(status).Inc()
	m.EvalDuration.Observe(d.Seconds())
}

// IdentityFailure records a rejected login identity
func (m *Metrics) IdentityFailure() {
	if m == nil {
		return
	}
	m.IdentityFailures.Inc()
}
