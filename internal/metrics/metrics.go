// Package metrics provides Prometheus metrics for publishing and workflows.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autopublisher"

var (
	// PublishAttempts counts single publish attempts by platform and outcome.
	PublishAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_attempts_total",
			Help:      "Total number of publish attempts",
		},
		[]string{"platform", "status"},
	)

	// PublishDuration measures the duration of a retry-wrapped publish.
	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of publish operations including retries",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"platform"},
	)

	// WorkflowsTotal counts finished workflows by terminal status.
	WorkflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_total",
			Help:      "Total number of finished workflows",
		},
		[]string{"status"},
	)

	// WorkflowDuration measures end-to-end workflow execution time.
	WorkflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Duration of workflow executions",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// TasksEnqueued counts tasks written to the queue.
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_enqueued_total",
			Help:      "Total number of enqueue operations",
		},
		[]string{"status"},
	)

	// HTTPRequests counts API requests by method and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "code"},
	)

	// ActiveTasks tracks workflows currently running on this worker.
	ActiveTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Number of workflows currently executing",
		},
	)
)

// RecordPublishAttempt records one publish attempt.
func RecordPublishAttempt(platform, status string) {
	PublishAttempts.WithLabelValues(platform, status).Inc()
}

// RecordPublish records a retry-wrapped publish.
func RecordPublish(platform string, duration time.Duration) {
	PublishDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordWorkflow records a finished workflow.
func RecordWorkflow(status string, duration time.Duration) {
	WorkflowsTotal.WithLabelValues(status).Inc()
	WorkflowDuration.Observe(duration.Seconds())
}

// RecordEnqueue records an enqueue operation.
func RecordEnqueue(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TasksEnqueued.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method string, code int) {
	HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}
