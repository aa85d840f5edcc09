package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
)

// Metrics holds the engine's prometheus collectors. All collectors are
// created unregistered so tests can use a throwaway set without touching the
// default registry.
type Metrics struct {
	EventsReceived   *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	RuleExecutions   *prometheus.CounterVec
	ActionExecutions *prometheus.CounterVec
	ActionDuration   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "events_received_total",
			Help:      "Change feed events received, by table and operation.",
		}, []string{"table", "op"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "events_dropped_total",
			Help:      "Events that could not be routed to any trigger.",
		}, []string{"reason"}),
		RuleExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "rule_executions_total",
			Help:      "Rule invocations by outcome (success, error, skipped).",
		}, []string{"outcome"}),
		ActionExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "action_executions_total",
			Help:      "Action executions by type and outcome.",
		}, []string{"action", "outcome"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "action_duration_seconds",
			Help:      "Action execution latency by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// Register attaches all collectors to the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.EventsReceived,
		m.EventsDropped,
		m.RuleExecutions,
		m.ActionExecutions,
		m.ActionDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
