package extraction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts extraction outcomes. A nil *Metrics records nothing.
//
// Metrics:
//   - travel_extractions_total{provenance} - updates adopted per extractor
//   - travel_remote_failures_total{kind} - remote failures by kind
type Metrics struct {
	extractions    *prometheus.CounterVec
	remoteFailures *prometheus.CounterVec
}

// NewMetrics registers the extraction counters with reg. A nil reg creates
// unregistered counters, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		extractions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "travel",
				Name:      "extractions_total",
				Help:      "Total number of extraction results adopted, by provenance",
			},
			[]string{"provenance"},
		),
		remoteFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "travel",
				Name:      "remote_failures_total",
				Help:      "Total number of remote extraction failures, by kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) observeExtraction(p Provenance) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) observeRemoteFailure(kind FailureKind) {
	if m == nil {
		return
	}
	m.remoteFailures.WithLabelValues(string(kind)).Inc()
}
