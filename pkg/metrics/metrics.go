// Package metrics provides Prometheus metrics for the registry service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistryOperationsTotal tracks facade operations by outcome
	RegistryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "registry",
			Name:      "operations_total",
			Help:      "Total number of registry operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// RegistryOperationDuration tracks facade operation duration in seconds
	RegistryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "registry",
			Name:      "operation_duration_seconds",
			Help:      "Duration of registry operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	// EntitiesCreatedTotal counts entity rows written, by type
	EntitiesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "registry",
			Name:      "entities_created_total",
			Help:      "Total number of entities created by type",
		},
		[]string{"entity_type"},
	)

	// EntitiesDeletedTotal counts entity rows removed, by type
	EntitiesDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "registry",
			Name:      "entities_deleted_total",
			Help:      "Total number of entities deleted by type",
		},
		[]string{"entity_type"},
	)

	// CreationRetriesTotal counts creations retried after losing a unique-name race
	CreationRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "registry",
			Name:      "creation_retries_total",
			Help:      "Total number of creations retried after a unique violation",
		},
		[]string{"entity_type"},
	)

	// TraversalEntitiesVisited tracks how many entities one BFS reaches
	TraversalEntitiesVisited = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "traversal",
			Name:      "entities_visited",
			Help:      "Number of entities reached by one breadth-first traversal",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"relationship"},
	)

	// ObserverFailuresTotal counts post-commit notifications that failed
	ObserverFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "observer",
			Name:      "failures_total",
			Help:      "Total number of failed post-commit notifications",
		},
		[]string{"observer", "event"},
	)

	// HTTPRequestsTotal tracks inbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks inbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)

// ObserveOperation records one facade call. Pass the named error return of
// the caller so the outcome is taken after it is set.
func ObserveOperation(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	RegistryOperationsTotal.WithLabelValues(operation, outcome).Inc()
	RegistryOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
