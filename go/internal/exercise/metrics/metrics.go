// Package metrics records clock, sync and gateway activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery and publish paths
const (
	PathCheckpoint = "checkpoint"
	PathDirect     = "direct"
	PathPing       = "ping"
	PathFallback   = "fallback"
)

// Collector defines the interface for collecting ExCon metrics
type Collector interface {
	RecordTick()
	RecordPublish(path string, success bool)
	RecordDelivery(path string)
	RecordDerivation(missed, arrived int)
	SetConnectedWindows(n int)
}

// NoOp is a no-op implementation for when metrics aren't needed
type NoOp struct{}

func (NoOp) RecordTick()                {}
func (NoOp) RecordPublish(string, bool) {}
func (NoOp) RecordDelivery(string)      {}
func (NoOp) RecordDerivation(int, int)  {}
func (NoOp) SetConnectedWindows(int)    {}

// Prometheus implements Collector with client_golang collectors
type Prometheus struct {
	ticks            prometheus.Counter
	publishes        *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	injectsMissed    prometheus.Counter
	resourcesArrived prometheus.Counter
	connectedWindows prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them with reg
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "excon",
			Name:      "clock_ticks_total",
			Help:      "Seconds advanced by the master clock.",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "excon",
			Name:      "sync_publishes_total",
			Help:      "Publish attempts by path and outcome.",
		}, []string{"path", "status"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "excon",
			Name:      "sync_deliveries_total",
			Help:      "Snapshots delivered to subscribers by path.",
		}, []string{"path"}),
		injectsMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "excon",
			Name:      "injects_missed_total",
			Help:      "Injects marked missed by the clock.",
		}),
		resourcesArrived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "excon",
			Name:      "resources_arrived_total",
			Help:      "Resources marked arrived by the clock.",
		}),
		connectedWindows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "excon",
			Name:      "gateway_connected_windows",
			Help:      "Windows attached over WebSocket.",
		}),
	}
	reg.MustRegister(m.ticks, m.publishes, m.deliveries, m.injectsMissed, m.resourcesArrived, m.connectedWindows)
	return m
}

func (m *Prometheus) RecordTick() { m.ticks.Inc() }

func (m *Prometheus) RecordPublish(path string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.publishes.WithLabelValues(path, status).Inc()
}

func (m *Prometheus) RecordDelivery(path string) {
	m.deliveries.WithLabelValues(path).Inc()
}

func (m *Prometheus) RecordDerivation(missed, arrived int) {
	m.injectsMissed.Add(float64(missed))
	m.resourcesArrived.Add(float64(arrived))
}

func (m *Prometheus) SetConnectedWindows(n int) {
	m.connectedWindows.Set(float64(n))
}
