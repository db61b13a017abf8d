package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeQuestion        = "question"
	outcomeSchedule        = "schedule"
	outcomePlanningFailure = "planning_failure"
	outcomeStorageFailure  = "storage_failure"
	outcomePanic           = "panic"
)

// Metrics counts handled turns by outcome. A nil *Metrics records nothing.
type Metrics struct {
	turns *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		turns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "travel",
				Name:      "turns_total",
				Help:      "Total number of handled conversation turns, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) observeTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}
