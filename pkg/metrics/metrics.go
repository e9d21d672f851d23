package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics records the ledger-integrity and sweep counters. The audit
// divergence counter is the operator-visible signal for a balance mutation
// whose ledger entry could not be written.
type GatewayMetrics struct {
	auditDivergence  *prometheus.CounterVec
	sweepDuration    *prometheus.HistogramVec
	sweepRepairs     prometheus.Counter
	requestsRejected *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	auditDivergence := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_audit_divergence_total",
		Help: "Balance mutations whose ledger entry is missing or failed to write.",
	}, []string{"source"})
	sweepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconcile_sweep_duration_seconds",
		Help:    "Duration of reconciliation sweep runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	sweepRepairs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_sweep_repairs_total",
		Help: "Confirmed payment intents repaired by the reconciliation sweep.",
	})
	requestsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_rejected_total",
		Help: "Requests rejected before reaching a handler.",
	}, []string{"reason"})
	reg.MustRegister(auditDivergence, sweepDuration, sweepRepairs, requestsRejected)
	return &GatewayMetrics{
		auditDivergence:  auditDivergence,
		sweepDuration:    sweepDuration,
		sweepRepairs:     sweepRepairs,
		requestsRejected: requestsRejected,
	}
}

// IncAuditDivergence bumps the audit divergence counter for the named source.
func (g *GatewayMetrics) IncAuditDivergence(source string) {
	if g == nil || g.auditDivergence == nil {
		return
	}
	g.auditDivergence.WithLabelValues(normalizeLabel(source)).Inc()
}

// ObserveSweepDuration records the duration of the named sweep job.
func (g *GatewayMetrics) ObserveSweepDuration(job string, duration time.Duration) {
	if g == nil || g.sweepDuration == nil {
		return
	}
	g.sweepDuration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSweepRepairs counts one repaired payment intent.
func (g *GatewayMetrics) IncSweepRepairs() {
	if g == nil || g.sweepRepairs == nil {
		return
	}
	g.sweepRepairs.Inc()
}

// IncRejected counts a request rejected for the given reason (rate_limit,
// unauthorized, ...).
func (g *GatewayMetrics) IncRejected(reason string) {
	if g == nil || g.requestsRejected == nil {
		return
	}
	g.requestsRejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
