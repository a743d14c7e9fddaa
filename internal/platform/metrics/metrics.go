package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Pipeline metrics
	AnchorRuns      *prometheus.CounterVec // Anchoring pipeline outcomes by terminal stage
	IssuanceRuns    *prometheus.CounterVec // Credential issuance outcomes by terminal stage
	PipelineLatency *prometheus.HistogramVec

	// Collaborator metrics
	CollaboratorRequests *prometheus.CounterVec // Outbound calls by collaborator and outcome
	CollaboratorLatency  *prometheus.HistogramVec
	CircuitOpened        *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AnchorRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorgate_anchor_runs_total",
			Help: "Total anchoring pipeline runs by terminal stage and outcome",
		}, []string{"stage", "outcome"}),
		IssuanceRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorgate_issuance_runs_total",
			Help: "Total credential issuance pipeline runs by terminal stage and outcome",
		}, []string{"stage", "outcome"}),
		PipelineLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anchorgate_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline"}),
		CollaboratorRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorgate_collaborator_requests_total",
			Help: "Total outbound collaborator calls by collaborator and outcome",
		}, []string{"collaborator", "outcome"}),
		CollaboratorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anchorgate_collaborator_request_duration_seconds",
			Help:    "Outbound collaborator call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"collaborator"}),
		CircuitOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorgate_collaborator_circuit_opened_total",
			Help: "Times a collaborator circuit breaker transitioned to open",
		}, []string{"collaborator"}),
	}
}
