package permit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricTransitionsTotal is the lifecycle transition counter name.
const MetricTransitionsTotal = "permit_transitions_total"

// Metrics contains Prometheus metrics for the lifecycle engine.
// All operations are thread-safe.
type Metrics struct {
	transitions *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricTransitionsTotal,
				Help: "Successful lifecycle transitions by variant and operation",
			},
			[]string{"variant", "operation"},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.transitions)
}

// observe counts one completed transition. Safe on a nil receiver, so an
// engine without metrics wiring stays quiet.
func (m *Metrics) observe(variant Variant, operation string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(variant), operation).Inc()
}
