// Package metrics exposes prometheus collectors for flowline job processing.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mdekker/flowline/pkg/core"
	"github.com/mdekker/flowline/pkg/engine"
)

var (
	// JobsStarted counts job executions started, by queue and job type.
	JobsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowline_jobs_started_total",
			Help: "Total number of job executions started.",
		},
		[]string{"queue", "type"},
	)

	// JobsCompleted counts successful job completions.
	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowline_jobs_completed_total",
			Help: "Total number of jobs completed successfully.",
		},
		[]string{"queue", "type"},
	)

	// JobsFailed counts permanent job failures.
	JobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowline_jobs_failed_total",
			Help: "Total number of jobs that failed permanently.",
		},
		[]string{"queue", "type"},
	)

	// JobsRetried counts retry attempts scheduled after handler errors.
	JobsRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowline_jobs_retried_total",
			Help: "Total number of job retries scheduled.",
		},
		[]string{"queue", "type"},
	)

	// JobDuration observes wall-clock execution time of completed jobs.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowline_job_duration_seconds",
			Help:    "Duration of completed job executions in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue", "type"},
	)
)

// Observe wires the collectors into e's lifecycle hooks. Call once per
// process before starting workers.
func Observe(e *engine.Engine) {
	e.OnJobStart(func(_ context.Context, job *core.Job) {
		JobsStarted.WithLabelValues(job.Queue, job.Type).Inc()
	})
	e.OnJobComplete(func(_ context.Context, job *core.Job) {
		JobsCompleted.WithLabelValues(job.Queue, job.Type).Inc()
		if job.StartedAt != nil {
			JobDuration.WithLabelValues(job.Queue, job.Type).Observe(time.Since(*job.StartedAt).Seconds())
		}
	})
	e.OnJobFail(func(_ context.Context, job *core.Job, _ error) {
		JobsFailed.WithLabelValues(job.Queue, job.Type).Inc()
	})
	e.OnRetry(func(_ context.Context, job *core.Job, _ int, _ error) {
		JobsRetried.WithLabelValues(job.Queue, job.Type).Inc()
	})
}
