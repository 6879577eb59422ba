package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opCreate = "create"
	opGet    = "get"
	opList   = "list"
	opUpdate = "update"
	opDelete = "delete"

	statusSuccess  = "success"
	statusNotFound = "not_found"
	statusInvalid  = "invalid"
	statusError    = "error"
)

var (
	operationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoapp_operations_total",
			Help: "Total number of todo operations by outcome",
		},
		[]string{"operation", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "todoapp_operation_duration_seconds",
			Help:    "Duration of todo operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// track starts timing op; the returned func records the outcome.
func track(op string) func(status string) {
	start := time.Now()
	return func(status string) {
		operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		operationCount.WithLabelValues(op, status).Inc()
	}
}
