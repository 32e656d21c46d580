package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mdekker/flowline/pkg/core"
	"github.com/mdekker/flowline/pkg/internal/handler"
	"github.com/mdekker/flowline/pkg/schedule"
	"github.com/mdekker/flowline/pkg/security"
)

// Engine manages handler registration, enqueueing, and schedules. It holds
// the store reference that workers bind into the execution context around
// each job run.
type Engine struct {
	store         core.Store
	handlers      map[string]*handler.Handler
	scheduledJobs map[string]*ScheduledJob
	mu            sync.RWMutex

	// Hooks
	onStart    []func(context.Context, *core.Job)
	onComplete []func(context.Context, *core.Job)
	onFail     []func(context.Context, *core.Job, error)
	onRetry    []func(context.Context, *core.Job, int, error)

	// Event stream
	eventSubs []chan core.Event
}

// ScheduledJob holds configuration for a recurring job.
type ScheduledJob struct {
	Name     string
	Schedule schedule.Schedule
	Args     any
	Options  *Options
}

// New creates a new Engine with the given store.
func New(s core.Store) *Engine {
	return &Engine{
		store:    s,
		handlers: make(map[string]*handler.Handler),
	}
}

// Register registers a job handler function. The function must have signature
// func(ctx context.Context, args T) error or func(ctx context.Context, args T)
// (R, error); a returned R is persisted as the job's output. Job type names
// must be alphanumeric (starting with a letter), max 255 chars.
func (e *Engine) Register(name string, fn any, opts ...Option) {
	if err := security.ValidateJobTypeName(name); err != nil {
		panic(fmt.Sprintf("flowline: invalid handler name %q: %v", name, err))
	}

	h, err := handler.New(fn)
	if err != nil {
		panic(fmt.Sprintf("flowline: handler for %q: %v", name, err))
	}

	if len(opts) > 0 {
		o := NewOptions()
		for _, opt := range opts {
			opt.Apply(o)
		}
		h.Timeout = o.Timeout
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
}

// HasHandler checks if a handler is registered.
func (e *Engine) HasHandler(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.handlers[name]
	return ok
}

// GetHandler returns a handler by name.
func (e *Engine) GetHandler(name string) (*handler.Handler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handlers[name]
	return h, ok
}

// Enqueue adds a job to the queue and returns its ID.
func (e *Engine) Enqueue(ctx context.Context, name string, args any, opts ...Option) (string, error) {
	if !e.HasHandler(name) {
		return "", fmt.Errorf("flowline: no handler registered for %q", name)
	}

	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}

	if err := security.ValidateQueueName(options.Queue); err != nil {
		return "", err
	}

	argsBytes, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("flowline: failed to marshal args: %w", err)
	}
	if len(argsBytes) > security.MaxJobArgsSize {
		return "", core.ErrJobArgsTooLarge
	}

	job := &core.Job{
		ID:         uuid.New().String(),
		Type:       name,
		Args:       argsBytes,
		Queue:      options.Queue,
		Priority:   options.Priority,
		MaxRetries: security.ClampRetries(options.MaxRetries),
		Status:     core.StatusPending,
	}

	if options.Delay > 0 {
		runAt := time.Now().Add(options.Delay)
		job.RunAt = &runAt
	}
	if options.RunAt != nil {
		job.RunAt = options.RunAt
	}

	if options.UniqueKey != "" {
		if err := security.ValidateUniqueKey(options.UniqueKey); err != nil {
			return "", err
		}
		if err := e.store.EnqueueUnique(ctx, job, options.UniqueKey); err != nil {
			if errors.Is(err, core.ErrDuplicateJob) {
				return "", err
			}
			return "", fmt.Errorf("flowline: failed to enqueue: %w", err)
		}
		return job.ID, nil
	}

	if err := e.store.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("flowline: failed to enqueue: %w", err)
	}
	return job.ID, nil
}

// Schedule registers a recurring job.
func (e *Engine) Schedule(name string, sched schedule.Schedule, args any, opts ...Option) {
	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}

	e.mu.Lock()
	if e.scheduledJobs == nil {
		e.scheduledJobs = make(map[string]*ScheduledJob)
	}
	e.scheduledJobs[name] = &ScheduledJob{
		Name:     name,
		Schedule: sched,
		Args:     args,
		Options:  options,
	}
	e.mu.Unlock()
}

// ScheduledJobs returns the scheduled jobs map (for the worker scheduler).
func (e *Engine) ScheduledJobs() map[string]*ScheduledJob {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scheduledJobs
}

// Store returns the underlying store.
func (e *Engine) Store() core.Store {
	return e.store
}

// Output retrieves a completed job's persisted output.
func (e *Engine) Output(ctx context.Context, jobID string) ([]byte, error) {
	return e.store.GetOutput(ctx, jobID)
}

// OnJobStart registers a callback for when a job starts.
func (e *Engine) OnJobStart(fn func(context.Context, *core.Job)) {
	e.mu.Lock()
	e.onStart = append(e.onStart, fn)
	e.mu.Unlock()
}

// OnJobComplete registers a callback for when a job completes successfully.
func (e *Engine) OnJobComplete(fn func(context.Context, *core.Job)) {
	e.mu.Lock()
	e.onComplete = append(e.onComplete, fn)
	e.mu.Unlock()
}

// OnJobFail registers a callback for when a job fails permanently.
func (e *Engine) OnJobFail(fn func(context.Context, *core.Job, error)) {
	e.mu.Lock()
	e.onFail = append(e.onFail, fn)
	e.mu.Unlock()
}

// OnRetry registers a callback for when a job is retried.
func (e *Engine) OnRetry(fn func(context.Context, *core.Job, int, error)) {
	e.mu.Lock()
	e.onRetry = append(e.onRetry, fn)
	e.mu.Unlock()
}

// Events returns a channel for receiving engine events. The caller must call
// Unsubscribe when done to prevent resource leaks.
func (e *Engine) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	e.mu.Lock()
	e.eventSubs = append(e.eventSubs, ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events(). The channel
// is not closed; callers must stop reading before calling Unsubscribe.
func (e *Engine) Unsubscribe(ch <-chan core.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.eventSubs {
		if sub == ch {
			e.eventSubs = append(e.eventSubs[:i], e.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit emits an event to all subscribers. Events are dropped for subscribers
// with a full buffer rather than blocking job processing.
func (e *Engine) Emit(ev core.Event) {
	e.mu.RLock()
	subs := make([]chan core.Event, len(e.eventSubs))
	copy(subs, e.eventSubs)
	e.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// CallStartHooks calls all registered start hooks.
func (e *Engine) CallStartHooks(ctx context.Context, job *core.Job) {
	e.mu.RLock()
	hooks := make([]func(context.Context, *core.Job), len(e.onStart))
	copy(hooks, e.onStart)
	e.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}

// CallCompleteHooks calls all registered complete hooks.
func (e *Engine) CallCompleteHooks(ctx context.Context, job *core.Job) {
	e.mu.RLock()
	hooks := make([]func(context.Context, *core.Job), len(e.onComplete))
	copy(hooks, e.onComplete)
	e.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}

// CallFailHooks calls all registered fail hooks.
func (e *Engine) CallFailHooks(ctx context.Context, job *core.Job, err error) {
	e.mu.RLock()
	hooks := make([]func(context.Context, *core.Job, error), len(e.onFail))
	copy(hooks, e.onFail)
	e.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job, err)
	}
}

// CallRetryHooks calls all registered retry hooks.
func (e *Engine) CallRetryHooks(ctx context.Context, job *core.Job, attempt int, err error) {
	e.mu.RLock()
	hooks := make([]func(context.Context, *core.Job, int, error), len(e.onRetry))
	copy(hooks, e.onRetry)
	e.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job, attempt, err)
	}
}

// WorkerFactory is set by the root package to create workers. This avoids an
// import cycle between the engine and worker packages.
var WorkerFactory func(e *Engine, opts ...any) core.Starter

// NewWorker creates a new worker for this engine. Options should be
// worker.Option values.
func (e *Engine) NewWorker(opts ...any) core.Starter {
	if WorkerFactory == nil {
		panic("flowline: WorkerFactory not initialized - import github.com/mdekker/flowline to initialize")
	}
	return WorkerFactory(e, opts...)
}
