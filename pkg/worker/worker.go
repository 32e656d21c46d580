package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mdekker/flowline/pkg/core"
	"github.com/mdekker/flowline/pkg/engine"
	"github.com/mdekker/flowline/pkg/execctx"
	"github.com/mdekker/flowline/pkg/internal/handler"
)

// Worker processes jobs from an engine's store. Around every handler
// invocation it establishes the execution-context binding: a strand-local
// scope always, and the process-wide holder in exclusive mode.
type Worker struct {
	engine *engine.Engine
	config Config
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a new worker for the given engine.
func New(e *engine.Engine, opts ...Option) *Worker {
	config := Config{
		PollInterval: 100 * time.Millisecond,
		WorkerID:     uuid.New().String(),
	}

	for _, opt := range opts {
		opt.ApplyWorker(&config)
	}

	if config.Queues == nil {
		config.Queues = map[string]int{"default": 10}
	}

	if config.StorageRetry == nil {
		defaultCfg := DefaultRetryConfig()
		config.StorageRetry = &defaultCfg
	}
	if config.DequeueRetry == nil {
		// Longer backoff for dequeue to avoid hammering the store during outages.
		dequeueCfg := RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFraction:    0.2,
		}
		config.DequeueRetry = &dequeueCfg
	}

	return &Worker{
		engine: e,
		config: config,
		logger: slog.Default(),
	}
}

// Start begins processing jobs. Blocks until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	queues := make([]string, 0, len(w.config.Queues))
	for q := range w.config.Queues {
		queues = append(queues, q)
	}

	totalConcurrency := 0
	for _, c := range w.config.Queues {
		totalConcurrency += c
	}
	// The process-wide holder admits one binding; exclusive mode keeps the
	// job-at-a-time guarantee that makes it safe.
	if w.config.Exclusive {
		totalConcurrency = 1
	}

	jobsChan := make(chan *core.Job, totalConcurrency)

	if w.config.EnableScheduler {
		go w.runScheduler(ctx)
	}
	if w.config.StaleLockSweep > 0 {
		go w.runStaleLockSweep(ctx)
	}

	for i := 0; i < totalConcurrency; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, jobsChan)
	}

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobsChan)
			w.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			job, err := w.dequeueWithRetry(ctx, queues)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					w.logger.Error("failed to dequeue after retries", "error", err)
				}
				continue
			}
			if job != nil {
				select {
				case jobsChan <- job:
				case <-ctx.Done():
				}
			}
		}
	}
}

// dequeueWithRetry attempts to dequeue a job with exponential backoff on failure.
func (w *Worker) dequeueWithRetry(ctx context.Context, queues []string) (*core.Job, error) {
	var job *core.Job
	err := retryWithBackoff(ctx, *w.config.DequeueRetry, func() error {
		var dequeueErr error
		job, dequeueErr = w.engine.Store().Dequeue(ctx, queues, w.config.WorkerID)
		return dequeueErr
	})
	return job, err
}

func (w *Worker) processLoop(ctx context.Context, jobs <-chan *core.Job) {
	defer w.wg.Done()

	for job := range jobs {
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *core.Job) {
	startTime := time.Now()

	h, ok := w.engine.GetHandler(job.Type)
	if !ok {
		w.logger.Error("no handler for job", "type", job.Type)
		w.failWithRetry(ctx, job.ID, fmt.Sprintf("no handler for %s", job.Type), nil)
		return
	}

	w.engine.CallStartHooks(ctx, job)
	w.engine.Emit(&core.JobStarted{Job: job, Timestamp: startTime})

	// Heartbeat keeps the lock alive for long-running jobs.
	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, job)

	output, err := w.executeHandler(ctx, job, h)

	cancelHeartbeat()

	if err != nil {
		w.handleError(ctx, job, err)
		return
	}

	if output != nil {
		if saveErr := w.saveOutputWithRetry(ctx, job.ID, output); saveErr != nil {
			w.handleError(ctx, job, fmt.Errorf("save output: %w", saveErr))
			return
		}
		w.engine.Emit(&core.OutputSaved{JobID: job.ID, Size: len(output), Timestamp: time.Now()})
	}

	if completeErr := w.completeWithRetry(ctx, job.ID); completeErr != nil {
		w.logger.Error("failed to complete job after retries", "job_id", job.ID, "error", completeErr)
		return
	}
	w.engine.CallCompleteHooks(ctx, job)
	w.engine.Emit(&core.JobCompleted{Job: job, Duration: time.Since(startTime), Timestamp: time.Now()})
}

// executeHandler establishes the execution-context binding and invokes the
// handler. The binding is cleared on every exit path, including panics.
func (w *Worker) executeHandler(ctx context.Context, job *core.Job, h *handler.Handler) (output []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	store := w.engine.Store()

	if w.config.Exclusive {
		if bindErr := execctx.Bind(job.ID, store); bindErr != nil {
			// A stale binding means a previous run never reset; surface it
			// rather than silently overwriting the active job.
			return nil, bindErr
		}
		defer execctx.Reset()
	}

	jobCtx := execctx.WithScope(ctx, job.ID, store)
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, h.Timeout)
		defer cancel()
	}

	return h.Execute(jobCtx, job.Args)
}

func (w *Worker) handleError(ctx context.Context, job *core.Job, err error) {
	var noRetry *core.NoRetryError
	if errors.As(err, &noRetry) {
		w.failWithRetry(ctx, job.ID, err.Error(), nil)
		w.engine.CallFailHooks(ctx, job, err)
		w.engine.Emit(&core.JobFailed{Job: job, Error: err, Timestamp: time.Now()})
		return
	}

	var retryAfter *core.RetryAfterError
	if errors.As(err, &retryAfter) && job.Attempt < job.MaxRetries {
		retryAt := time.Now().Add(retryAfter.Delay)
		w.failWithRetry(ctx, job.ID, err.Error(), &retryAt)
		w.engine.CallRetryHooks(ctx, job, job.Attempt, err)
		w.engine.Emit(&core.JobRetrying{Job: job, Attempt: job.Attempt, Error: err, NextRunAt: retryAt, Timestamp: time.Now()})
		return
	}

	if job.Attempt < job.MaxRetries {
		retryAt := time.Now().Add(w.calculateBackoff(job.Attempt))
		w.failWithRetry(ctx, job.ID, err.Error(), &retryAt)
		w.engine.CallRetryHooks(ctx, job, job.Attempt, err)
		w.engine.Emit(&core.JobRetrying{Job: job, Attempt: job.Attempt, Error: err, NextRunAt: retryAt, Timestamp: time.Now()})
	} else {
		w.failWithRetry(ctx, job.ID, err.Error(), nil)
		w.engine.CallFailHooks(ctx, job, err)
		w.engine.Emit(&core.JobFailed{Job: job, Error: err, Timestamp: time.Now()})
	}
}

// completeWithRetry marks a job complete with retry on transient failures.
func (w *Worker) completeWithRetry(ctx context.Context, jobID string) error {
	return retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		return w.engine.Store().Complete(ctx, jobID, w.config.WorkerID)
	})
}

// saveOutputWithRetry persists a handler's output with retry on transient failures.
func (w *Worker) saveOutputWithRetry(ctx context.Context, jobID string, output []byte) error {
	return retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		return w.engine.Store().SaveOutput(ctx, jobID, w.config.WorkerID, output)
	})
}

// failWithRetry marks a job as failed with retry on transient storage failures.
func (w *Worker) failWithRetry(ctx context.Context, jobID string, errMsg string, retryAt *time.Time) {
	err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		return w.engine.Store().Fail(ctx, jobID, w.config.WorkerID, errMsg, retryAt)
	})
	if err != nil {
		w.logger.Error("failed to mark job as failed after retries", "job_id", jobID, "error", err)
	}
}

func (w *Worker) calculateBackoff(attempt int) time.Duration {
	base := time.Second
	backoff := base * (1 << attempt)
	if backoff > time.Minute {
		backoff = time.Minute
	}
	return backoff
}

// runHeartbeat periodically extends the job lock during execution.
func (w *Worker) runHeartbeat(ctx context.Context, job *core.Job) {
	// Lock duration is 5 minutes; beat well inside it.
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
				return w.engine.Store().Heartbeat(ctx, job.ID, w.config.WorkerID)
			})
			if err != nil {
				w.logger.Warn("heartbeat failed after retries", "job_id", job.ID, "error", err)
			} else {
				w.logger.Debug("heartbeat sent", "job_id", job.ID)
			}
		}
	}
}

// runStaleLockSweep periodically requeues jobs whose locks went stale.
func (w *Worker) runStaleLockSweep(ctx context.Context) {
	ticker := time.NewTicker(w.config.StaleLockSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := w.engine.Store().ReleaseStaleLocks(ctx, w.config.StaleLockSweep)
			if err != nil {
				w.logger.Error("stale lock sweep failed", "error", err)
				continue
			}
			if released > 0 {
				w.logger.Info("released stale job locks", "count", released)
			}
		}
	}
}

func (w *Worker) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	lastRun := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scheduled := w.engine.ScheduledJobs()
			if scheduled == nil {
				continue
			}

			now := time.Now()
			for name, sj := range scheduled {
				nextRun := sj.Schedule.Next(lastRun[name])
				if now.After(nextRun) || now.Equal(nextRun) {
					_, err := w.engine.Enqueue(ctx, sj.Name, sj.Args,
						engine.OnQueue(sj.Options.Queue),
						engine.Priority(sj.Options.Priority),
					)
					if err != nil {
						w.logger.Error("failed to enqueue scheduled job", "name", name, "error", err)
					} else {
						lastRun[name] = now
					}
				}
			}
		}
	}
}
