package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mdekker/flowline/pkg/core"
	"github.com/mdekker/flowline/pkg/engine"
	"github.com/mdekker/flowline/pkg/execctx"
	"github.com/mdekker/flowline/pkg/schedule"
	"github.com/mdekker/flowline/pkg/storage"
)

// newTestEngine creates an engine over a file-backed sqlite database so
// concurrent worker goroutines share one database.
func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowline.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := storage.NewGormStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return engine.New(s)
}

// startWorker runs w until the test ends.
func startWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// waitForStatus polls until the job reaches the wanted status.
func waitForStatus(t *testing.T, e *engine.Engine, jobID string, want core.JobStatus) *core.Job {
	t.Helper()
	var job *core.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = e.Store().GetJob(context.Background(), jobID)
		return err == nil && job != nil && job.Status == want
	}, 10*time.Second, 20*time.Millisecond, "job %s never reached status %s", jobID, want)
	return job
}

func TestWorker_ProcessesJobAndSavesOutput(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Register("double", func(ctx context.Context, n int) (int, error) {
		return n * 2, nil
	})

	w := New(e, PollInterval(10*time.Millisecond))
	startWorker(t, w)

	id, err := e.Enqueue(ctx, "double", 21)
	require.NoError(t, err)

	waitForStatus(t, e, id, core.StatusCompleted)

	out, err := e.Output(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "42", string(out))
}

func TestWorker_HandlerSeesExecutionScope(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var seenJobID atomic.Value
	var sameStore atomic.Bool
	e.Register("introspect", func(ctx context.Context, _ struct{}) error {
		seenJobID.Store(execctx.JobID(ctx))
		sameStore.Store(execctx.Store(ctx) == e.Store())
		return nil
	})

	w := New(e, PollInterval(10*time.Millisecond))
	startWorker(t, w)

	id, err := e.Enqueue(ctx, "introspect", struct{}{})
	require.NoError(t, err)

	waitForStatus(t, e, id, core.StatusCompleted)

	assert.Equal(t, id, seenJobID.Load())
	assert.True(t, sameStore.Load(), "handler should see the engine's store in its scope")
}

func TestWorker_ExclusiveBindsProcessWideHolder(t *testing.T) {
	t.Cleanup(execctx.Reset)

	e := newTestEngine(t)
	ctx := context.Background()

	var boundID atomic.Value
	e.Register("ambient", func(ctx context.Context, _ struct{}) error {
		id, _ := execctx.ActiveJobID()
		boundID.Store(id)
		return nil
	})

	w := New(e, PollInterval(10*time.Millisecond), Exclusive())
	startWorker(t, w)

	id, err := e.Enqueue(ctx, "ambient", struct{}{})
	require.NoError(t, err)

	waitForStatus(t, e, id, core.StatusCompleted)

	assert.Equal(t, id, boundID.Load())

	// The binding is cleared once the job concludes.
	_, stillBound := execctx.ActiveJobID()
	assert.False(t, stillBound)
}

func TestWorker_RetriesFailedJob(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var attempts atomic.Int32
	e.Register("flaky", func(ctx context.Context, _ struct{}) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient")
		}
		return nil
	})

	w := New(e, PollInterval(10*time.Millisecond))
	startWorker(t, w)

	id, err := e.Enqueue(ctx, "flaky", struct{}{}, engine.Retries(3))
	require.NoError(t, err)

	job := waitForStatus(t, e, id, core.StatusCompleted)
	assert.GreaterOrEqual(t, job.Attempt, 2)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestWorker_NoRetryFailsPermanently(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var attempts atomic.Int32
	e.Register("hopeless", func(ctx context.Context, _ struct{}) error {
		attempts.Add(1)
		return core.NoRetry(errors.New("bad input"))
	})

	w := New(e, PollInterval(10*time.Millisecond))
	startWorker(t, w)

	id, err := e.Enqueue(ctx, "hopeless", struct{}{}, engine.Retries(3))
	require.NoError(t, err)

	job := waitForStatus(t, e, id, core.StatusFailed)
	assert.EqualValues(t, 1, attempts.Load())
	assert.Contains(t, job.LastError, "bad input")
}

func TestWorker_RecoversFromPanic(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Register("explode", func(ctx context.Context, _ struct{}) error {
		panic("kaboom")
	})

	w := New(e, PollInterval(10*time.Millisecond))
	startWorker(t, w)

	id, err := e.Enqueue(ctx, "explode", struct{}{}, engine.Retries(0))
	require.NoError(t, err)

	job := waitForStatus(t, e, id, core.StatusFailed)
	assert.Contains(t, job.LastError, "panic")
}

func TestWorker_UnknownJobTypeFails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Register then enqueue, then simulate the handler disappearing by using
	// a second engine sharing the store but without the registration.
	e.Register("orphan", func(ctx context.Context, _ struct{}) error { return nil })
	id, err := e.Enqueue(ctx, "orphan", struct{}{})
	require.NoError(t, err)

	bare := engine.New(e.Store())
	w := New(bare, PollInterval(10*time.Millisecond))
	startWorker(t, w)

	job := waitForStatus(t, bare, id, core.StatusFailed)
	assert.Contains(t, job.LastError, "no handler")
}

func TestWorker_EmitsLifecycleEvents(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Register("emit", func(ctx context.Context, _ struct{}) (string, error) {
		return "ok", nil
	})

	events := e.Events()
	defer e.Unsubscribe(events)

	w := New(e, PollInterval(10*time.Millisecond))
	startWorker(t, w)

	id, err := e.Enqueue(ctx, "emit", struct{}{})
	require.NoError(t, err)

	waitForStatus(t, e, id, core.StatusCompleted)

	var sawStarted, sawOutput, sawCompleted bool
	deadline := time.After(5 * time.Second)
	for !(sawStarted && sawOutput && sawCompleted) {
		select {
		case ev := <-events:
			switch ev.(type) {
			case *core.JobStarted:
				sawStarted = true
			case *core.OutputSaved:
				sawOutput = true
			case *core.JobCompleted:
				sawCompleted = true
			}
		case <-deadline:
			t.Fatalf("missing events: started=%v output=%v completed=%v", sawStarted, sawOutput, sawCompleted)
		}
	}
}

func TestWorker_SchedulerEnqueuesRecurringJobs(t *testing.T) {
	e := newTestEngine(t)

	var runs atomic.Int32
	e.Register("tick", func(ctx context.Context, _ struct{}) error {
		runs.Add(1)
		return nil
	})
	e.Schedule("tick", schedule.Every(50*time.Millisecond), struct{}{})

	w := New(e, PollInterval(10*time.Millisecond), WithScheduler(true))
	startWorker(t, w)

	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 10*time.Second, 20*time.Millisecond, "scheduler never enqueued recurring job")
}

func TestWorker_HandlerTimeout(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Register("sleepy", func(ctx context.Context, _ struct{}) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}, engine.Timeout(50*time.Millisecond))

	w := New(e, PollInterval(10*time.Millisecond))
	startWorker(t, w)

	id, err := e.Enqueue(ctx, "sleepy", struct{}{}, engine.Retries(0))
	require.NoError(t, err)

	job := waitForStatus(t, e, id, core.StatusFailed)
	assert.Contains(t, job.LastError, "context deadline exceeded")
}
