package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.RecordTick()
	m.RecordTick()
	m.RecordPublish(PathCheckpoint, true)
	m.RecordPublish(PathDirect, false)
	m.RecordDelivery(PathFallback)
	m.RecordDerivation(2, 1)
	m.SetConnectedWindows(3)

	if got := testutil.ToFloat64(m.ticks); got != 2 {
		t.Fatalf("ticks = %v", got)
	}
	if got := testutil.ToFloat64(m.publishes.WithLabelValues(PathDirect, "failure")); got != 1 {
		t.Fatalf("direct failures = %v", got)
	}
	if got := testutil.ToFloat64(m.publishes.WithLabelValues(PathCheckpoint, "success")); got != 1 {
		t.Fatalf("checkpoint successes = %v", got)
	}
	if got := testutil.ToFloat64(m.deliveries.WithLabelValues(PathFallback)); got != 1 {
		t.Fatalf("fallback deliveries = %v", got)
	}
	if got := testutil.ToFloat64(m.injectsMissed); got != 2 {
		t.Fatalf("missed = %v", got)
	}
	if got := testutil.ToFloat64(m.resourcesArrived); got != 1 {
		t.Fatalf("arrived = %v", got)
	}
	if got := testutil.ToFloat64(m.connectedWindows); got != 3 {
		t.Fatalf("windows = %v", got)
	}

	var _ Collector = NoOp{}
	var _ Collector = m
}
