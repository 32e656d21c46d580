// Package flowline provides durable job execution with an ambient
// execution context: while a job runs, its identity and the store receiving
// its output are discoverable without explicit parameter threading.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	// Create store and engine
//	db, _ := gorm.Open(sqlite.Open("flowline.db"), &gorm.Config{})
//	store := flowline.NewGormStore(db)
//	store.Migrate(context.Background())
//	eng := flowline.New(store)
//
//	// Register handler; the returned value is persisted as the job's output
//	eng.Register("fetch-report", func(ctx context.Context, month string) (Report, error) {
//	    return buildReport(ctx, month)
//	})
//
//	// Enqueue job
//	eng.Enqueue(ctx, "fetch-report", "2026-08")
//
//	// Start worker
//	w := eng.NewWorker()
//	w.Start(ctx)
//
// Inside a handler the execution context is available through execctx:
//
//	jobID := execctx.JobID(ctx)
//	store := execctx.Store(ctx)
package flowline

import (
	"gorm.io/gorm"

	"github.com/mdekker/flowline/pkg/core"
	"github.com/mdekker/flowline/pkg/engine"
	"github.com/mdekker/flowline/pkg/execctx"
	"github.com/mdekker/flowline/pkg/schedule"
	"github.com/mdekker/flowline/pkg/storage"
	"github.com/mdekker/flowline/pkg/worker"
)

func init() {
	// Register the worker factory to enable engine.NewWorker()
	engine.WorkerFactory = func(e *engine.Engine, opts ...any) core.Starter {
		workerOpts := make([]worker.Option, 0, len(opts))
		for _, opt := range opts {
			if wo, ok := opt.(worker.Option); ok {
				workerOpts = append(workerOpts, wo)
			}
		}
		return worker.New(e, workerOpts...)
	}
}

type (
	// Job is a unit of work tracked by the execution context while it runs.
	Job = core.Job

	// JobStatus represents the current state of a job.
	JobStatus = core.JobStatus

	// Store defines the persistence backend for jobs and their outputs.
	Store = core.Store

	// Event is the interface for all engine events.
	Event = core.Event

	// JobStarted is emitted when a job starts processing.
	JobStarted = core.JobStarted

	// JobCompleted is emitted when a job completes successfully.
	JobCompleted = core.JobCompleted

	// JobFailed is emitted when a job fails permanently.
	JobFailed = core.JobFailed

	// JobRetrying is emitted when a job is retried.
	JobRetrying = core.JobRetrying

	// OutputSaved is emitted when a job's output is persisted.
	OutputSaved = core.OutputSaved

	// NoRetryError indicates an error that should not be retried.
	NoRetryError = core.NoRetryError

	// RetryAfterError indicates an error that should be retried after a delay.
	RetryAfterError = core.RetryAfterError

	// Engine manages handler registration, enqueueing, and schedules.
	Engine = engine.Engine

	// Option modifies enqueue and registration options.
	Option = engine.Option

	// WorkerOption configures a Worker.
	WorkerOption = worker.Option

	// Worker processes jobs.
	Worker = worker.Worker

	// Schedule computes the next run time for a recurring job.
	Schedule = schedule.Schedule

	// ExecutionContext holds the identity of the job presently executing and
	// the store its outputs are persisted to.
	ExecutionContext = execctx.Context

	// GormStore implements Store using GORM.
	GormStore = storage.GormStore
)

// Job statuses.
const (
	StatusPending   = core.StatusPending
	StatusRunning   = core.StatusRunning
	StatusCompleted = core.StatusCompleted
	StatusFailed    = core.StatusFailed
)

// Sentinel errors.
var (
	ErrDuplicateJob       = core.ErrDuplicateJob
	ErrJobNotOwned        = core.ErrJobNotOwned
	ErrJobNotFound        = core.ErrJobNotFound
	ErrJobArgsTooLarge    = core.ErrJobArgsTooLarge
	ErrRebindWithoutReset = execctx.ErrRebindWithoutReset
)

// Error wrappers.
var (
	NoRetry    = core.NoRetry
	RetryAfter = core.RetryAfter
)

// Enqueue options.
var (
	OnQueue  = engine.OnQueue
	Priority = engine.Priority
	Retries  = engine.Retries
	Delay    = engine.Delay
	At       = engine.At
	Unique   = engine.Unique
	Timeout  = engine.Timeout
)

// Worker options.
var (
	Concurrency    = worker.Concurrency
	WorkerQueue    = worker.Queue
	PollInterval   = worker.PollInterval
	WithScheduler  = worker.WithScheduler
	WithWorkerID   = worker.WithWorkerID
	Exclusive      = worker.Exclusive
	StaleLockSweep = worker.StaleLockSweep
)

// Schedules.
var (
	Every  = schedule.Every
	Daily  = schedule.Daily
	Weekly = schedule.Weekly
	Cron   = schedule.Cron
)

// New creates a new Engine with the given store.
func New(s Store) *Engine {
	return engine.New(s)
}

// NewWorker creates a new worker for the given engine.
func NewWorker(e *Engine, opts ...worker.Option) *Worker {
	return worker.New(e, opts...)
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return storage.NewGormStore(db)
}
