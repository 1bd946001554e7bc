package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	MutationsTotal   *prometheus.CounterVec
	PhaseEntered     *prometheus.CounterVec
	PhaseValid       *prometheus.CounterVec
	AdjacencyRepairs prometheus.Counter
	ClaimsSubmitted  prometheus.Counter
	SearchLatency    *prometheus.HistogramVec
	RequestLatency   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		MutationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flightclaim_itinerary_mutations_total",
			Help: "Itinerary store mutations by operation",
		}, []string{"operation"}),
		PhaseEntered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flightclaim_phase_entered_total",
			Help: "Wizard phase entries by phase",
		}, []string{"phase"}),
		PhaseValid: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flightclaim_phase_validity_total",
			Help: "Validity outcomes after mutations, by phase and result",
		}, []string{"phase", "valid"}),
		AdjacencyRepairs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flightclaim_adjacency_repairs_total",
			Help: "Adjacency repair passes triggered on phase load",
		}),
		ClaimsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flightclaim_claims_submitted_total",
			Help: "Claims submitted from the final phase",
		}),
		SearchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightclaim_search_latency_seconds",
			Help:    "Latency of airport and flight search collaborator calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightclaim_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveSearch records one collaborator call.
func (m *Metrics) ObserveSearch(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// CountMutation records one itinerary store mutation and its validity
// outcome. Nil-safe so pure-logic tests can pass a nil Metrics.
func (m *Metrics) CountMutation(operation, phase string, valid bool) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(operation).Inc()
	result := "false"
	if valid {
		result = "true"
	}
	m.PhaseValid.WithLabelValues(phase, result).Inc()
}
