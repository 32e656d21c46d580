// Package engine provides the registration and enqueueing orchestrator for flowline.
package engine

import (
	"time"

	"github.com/mdekker/flowline/pkg/security"
)

// DefaultJobRetries is the retry count applied when none is specified.
var DefaultJobRetries = 2

// Options holds configuration for job enqueueing and registration.
type Options struct {
	Queue      string
	Priority   int
	MaxRetries int
	Delay      time.Duration
	RunAt      *time.Time
	UniqueKey  string
	Timeout    time.Duration
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Queue:      "default",
		MaxRetries: DefaultJobRetries,
	}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// OnQueue sets the queue name.
func OnQueue(name string) Option {
	return optionFunc(func(o *Options) {
		o.Queue = name
	})
}

// Priority sets the job priority (higher = runs first).
func Priority(p int) Option {
	return optionFunc(func(o *Options) {
		o.Priority = p
	})
}

// Retries sets the maximum retry count, clamped to [0, security.MaxRetries].
func Retries(n int) Option {
	return optionFunc(func(o *Options) {
		o.MaxRetries = security.ClampRetries(n)
	})
}

// Delay schedules the job to run after a duration.
func Delay(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.Delay = d
	})
}

// At schedules the job to run at a specific time.
func At(t time.Time) Option {
	return optionFunc(func(o *Options) {
		o.RunAt = &t
	})
}

// Unique ensures only one pending or running job with this key exists.
func Unique(key string) Option {
	return optionFunc(func(o *Options) {
		o.UniqueKey = key
	})
}

// Timeout bounds a handler's execution time. Zero means no limit.
func Timeout(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.Timeout = d
	})
}
