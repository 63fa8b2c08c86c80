package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the quota/permit engine.
type Metrics struct {
	DeploymentsCreated    prometheus.Counter
	DeploymentsTerminated *prometheus.CounterVec
	QuotaRejections       *prometheus.CounterVec
	PermitsIssued         *prometheus.CounterVec
	RunawayTransitions    *prometheus.CounterVec
	RequestDuration       *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DeploymentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "workpermit_deployments_created_total",
			Help: "Total number of deployments created",
		}),
		DeploymentsTerminated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "workpermit_deployments_terminated_total",
			Help: "Total number of deployments terminated, by reason",
		}, []string{"reason"}),
		QuotaRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "workpermit_quota_rejections_total",
			Help: "Total number of placements rejected by quota checks, by kind (overall or gender)",
		}, []string{"kind"}),
		PermitsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "workpermit_permits_issued_total",
			Help: "Total number of employment permits issued, by type",
		}, []string{"type"}),
		RunawayTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "workpermit_runaway_transitions_total",
			Help: "Total number of runaway record transitions, by target state",
		}, []string{"state"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workpermit_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
