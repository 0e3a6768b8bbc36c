package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	transitions *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured chain events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "platform",
				Subsystem: "events",
				Name:      "transitions_total",
				Help:      "Count of executed state transitions segmented by kind.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(eventRegistry.transitions)
	})
	return eventRegistry
}

// RecordTransition increments the transition counter for the supplied kind.
func (m *eventMetrics) RecordTransition(kind string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(kind)
	if normalized == "" {
		normalized = "Unknown"
	}
	m.transitions.WithLabelValues(normalized).Inc()
}
