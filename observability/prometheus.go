package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventTransition is the event type whose Data carries AttrUnitID and
// AttrCurrent. PrometheusObserver counts these per unit and state.
const EventTransition EventType = "unit.transition"

// PrometheusObserver counts events by type, source and level, and state
// transitions by unit and target state.
type PrometheusObserver struct {
	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// NewPrometheusObserver registers its collectors with reg. A nil reg leaves
// the collectors unregistered.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) *PrometheusObserver {
	factory := promauto.With(reg)
	return &PrometheusObserver{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Observability events by type, source and level.",
		}, []string{"type", "source", "level"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_transitions_total",
			Help:      "Unit state transitions by unit and target state.",
		}, []string{"unit", "state"}),
	}
}

func (o *PrometheusObserver) OnEvent(_ context.Context, event Event) {
	o.events.WithLabelValues(string(event.Type), event.Source, event.Level.String()).Inc()

	if event.Type != EventTransition {
		return
	}
	unitID, ok := event.UnitID()
	if !ok {
		return
	}
	o.transitions.WithLabelValues(unitID, fmt.Sprint(event.Data[AttrCurrent])).Inc()
}
