package observer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records ledger domain events as Prometheus counters, grounded on
// the same promauto wiring the HTTP layer uses for request metrics.
type Metrics struct {
	events *prometheus.CounterVec
}

// NewMetrics registers the ledger event counters against the default
// registry and returns an Observer backed by them.
func NewMetrics() *Metrics {
	return &Metrics{
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledger",
				Name:      "domain_events_total",
				Help:      "Total number of ledger domain events by kind.",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) Notify(e Event) {
	m.events.WithLabelValues(string(e.Kind)).Inc()
}
