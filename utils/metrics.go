package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the workflow engine. They are
// registered on the registerer passed to NewMetrics, never on the default one,
// so tests can build as many instances as they need.
type Metrics struct {
	// Service operations
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	VersionConflicts  *prometheus.CounterVec
	DuplicateRequests *prometheus.CounterVec

	// Approval workflow
	CascadesTotal  *prometheus.CounterVec
	RollbacksTotal prometheus.Counter

	// Statistics cache
	StatsCacheHits   *prometheus.CounterVec
	StatsCacheMisses prometheus.Counter

	// Revision events
	EventsPublished *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_workflow_operations_total",
			Help: "Total number of workflow operations by result",
		},
		[]string{"operation", "result"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_workflow_operation_duration_seconds",
			Help:    "Duration of workflow operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	m.VersionConflicts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_workflow_version_conflicts_total",
			Help: "Total number of persists rejected by the optimistic concurrency check",
		},
		[]string{"operation"},
	)

	m.DuplicateRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_workflow_duplicate_requests_total",
			Help: "Total number of requests rejected because their idempotency key was already used",
		},
		[]string{"operation"},
	)

	m.CascadesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_workflow_cascades_total",
			Help: "Total number of approval sections moved to needs_review by a cascade",
		},
		[]string{"section"},
	)

	m.RollbacksTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_workflow_rollbacks_total",
			Help: "Total number of committed rollbacks",
		},
	)

	m.StatsCacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_workflow_stats_cache_hits_total",
			Help: "Total number of statistics served from cache by layer",
		},
		[]string{"layer"},
	)

	m.StatsCacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_workflow_stats_cache_misses_total",
			Help: "Total number of statistics computed from the store",
		},
	)

	m.EventsPublished = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_workflow_events_published_total",
			Help: "Total number of revision events handed to the broker by result",
		},
		[]string{"result"},
	)

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_workflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_workflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	return m
}
