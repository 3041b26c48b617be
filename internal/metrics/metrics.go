// Package metrics exposes the service's prometheus collectors. Handlers and
// services record here; /metrics is served by promhttp in the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_validations_total",
		Help: "Presence validations by outcome (valid, invalid, rate_limited, not_found, error).",
	}, []string{"outcome"})

	PublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_publish_failures_total",
		Help: "Validation results that could not be delivered to subscribers.",
	})

	CodeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_code_operations_total",
		Help: "Rotating code operations by kind, operation and result.",
	}, []string{"kind", "operation", "result"})
)
