// Package metrics exposes provisioning counters on the default Prometheus
// registry; the HTTP layer mounts promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProvisionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provision_requests_total",
		Help: "Provisioning create requests by outcome.",
	}, []string{"outcome"})

	TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provision_tasks_completed_total",
		Help: "Finished provisioning tasks by result.",
	}, []string{"result"})

	TaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "provision_task_duration_seconds",
		Help:    "Wall-clock duration of provisioning tasks.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Create request outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Task results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultCrash   = "crash"
)
