package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewGatewayMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGatewayMetrics(reg)

	m.IncAuditDivergence("deduct")
	m.IncAuditDivergence("deduct")
	m.IncSweepRepairs()
	m.ObserveSweepDuration("payment_reconcile", 50*time.Millisecond)
	m.IncRejected("rate_limit")

	if got := testutil.ToFloat64(m.auditDivergence.WithLabelValues("deduct")); got != 2 {
		t.Fatalf("expected 2 divergences, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweepRepairs); got != 1 {
		t.Fatalf("expected 1 repair, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestsRejected.WithLabelValues("rate_limit")); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *GatewayMetrics
	m.IncAuditDivergence("deduct")
	m.IncSweepRepairs()
	m.ObserveSweepDuration("job", time.Second)
	m.IncRejected("")

	empty := NewGatewayMetrics(nil)
	empty.IncAuditDivergence("grant")
}
