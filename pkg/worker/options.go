// Package worker provides the job processor for flowline.
package worker

import (
	"time"

	"github.com/mdekker/flowline/pkg/security"
)

// Option configures a Worker.
type Option interface {
	ApplyWorker(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyWorker(c *Config) { f(c) }

// Config holds worker configuration.
type Config struct {
	Queues          map[string]int // queue name -> concurrency
	PollInterval    time.Duration
	WorkerID        string
	EnableScheduler bool

	// Exclusive runs at most one job at a time and additionally publishes the
	// active job on the process-wide execution context holder.
	Exclusive bool

	// StaleLockSweep enables periodic release of stale job locks when > 0.
	StaleLockSweep time.Duration

	StorageRetry *RetryConfig
	DequeueRetry *RetryConfig
}

// Concurrency sets the concurrency for all configured queues, clamped to
// [1, security.MaxConcurrency].
func Concurrency(n int) Option {
	return optionFunc(func(c *Config) {
		clamped := security.ClampConcurrency(n)
		for k := range c.Queues {
			c.Queues[k] = clamped
		}
	})
}

// Queue adds a queue to process with optional per-queue options.
func Queue(name string, opts ...Option) Option {
	return optionFunc(func(c *Config) {
		if c.Queues == nil {
			c.Queues = make(map[string]int)
		}
		c.Queues[name] = 10 // default concurrency
		for _, opt := range opts {
			opt.ApplyWorker(c)
		}
	})
}

// PollInterval sets how often the worker polls for new jobs.
func PollInterval(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.PollInterval = d
	})
}

// WithScheduler enables the recurring-job scheduler in the worker.
func WithScheduler(enabled bool) Option {
	return optionFunc(func(c *Config) {
		c.EnableScheduler = enabled
	})
}

// WithWorkerID sets an explicit worker identity.
func WithWorkerID(id string) Option {
	return optionFunc(func(c *Config) {
		c.WorkerID = id
	})
}

// Exclusive runs jobs one at a time and binds each to the process-wide
// execution context holder for the duration of its run.
func Exclusive() Option {
	return optionFunc(func(c *Config) {
		c.Exclusive = true
	})
}

// StaleLockSweep enables a periodic sweep that requeues jobs whose lock
// expired more than d ago.
func StaleLockSweep(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.StaleLockSweep = d
	})
}
