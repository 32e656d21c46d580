package execctx

import (
	"context"
	"errors"
	"sync"

	"github.com/mdekker/flowline/pkg/core"
)

// ErrRebindWithoutReset is returned by Bind when the holder is already bound.
// Silently overwriting would strip the running job of its identity and store
// with no observable signal, so Bind fails loudly instead.
var ErrRebindWithoutReset = errors.New("execctx: already bound to an active job (missing Reset)")

// Context holds the identity of the job presently executing and the store its
// outputs are persisted to. The zero value is an empty, usable holder.
//
// Both fields are set and cleared together: a reader never observes a job ID
// without its store, or a store without its job ID.
type Context struct {
	mu    sync.Mutex
	jobID string
	store core.Store
}

// New returns an empty holder.
func New() *Context {
	return &Context{}
}

// Bind records jobID and store as the active binding. The store is held by
// reference only; its lifetime stays with whoever opened it.
//
// Bind returns ErrRebindWithoutReset when a binding is already in place.
// The caller must Reset before binding the next job.
func (c *Context) Bind(jobID string, store core.Store) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jobID != "" || c.store != nil {
		return ErrRebindWithoutReset
	}
	c.jobID = jobID
	c.store = store
	return nil
}

// Reset clears the binding. It is idempotent: resetting an empty holder is a
// no-op. Reset is called when the job concludes, whether it succeeded,
// failed, or was cancelled.
func (c *Context) Reset() {
	c.mu.Lock()
	c.jobID = ""
	c.store = nil
	c.mu.Unlock()
}

// ActiveJobID returns the bound job ID. The second return is false when no
// job is active.
func (c *Context) ActiveJobID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID, c.jobID != ""
}

// ActiveStore returns the bound store. The second return is false when no
// job is active.
func (c *Context) ActiveStore() (core.Store, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store, c.store != nil
}

// Bound reports whether a job is currently bound.
func (c *Context) Bound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID != "" || c.store != nil
}

// current is the process-wide holder. It exists for single-job-per-process
// use; concurrent workers use strand-local holders via WithScope.
var current = New()

// Current returns the process-wide holder.
func Current() *Context {
	return current
}

// Bind binds jobID and store on the process-wide holder.
func Bind(jobID string, store core.Store) error {
	return current.Bind(jobID, store)
}

// Reset clears the process-wide holder.
func Reset() {
	current.Reset()
}

// ActiveJobID returns the job ID bound on the process-wide holder.
func ActiveJobID() (string, bool) {
	return current.ActiveJobID()
}

// ActiveStore returns the store bound on the process-wide holder.
func ActiveStore() (core.Store, bool) {
	return current.ActiveStore()
}

// scopeKey is the context.Context key for strand-local holders.
type scopeKey struct{}

// WithScope returns a child context carrying a fresh holder bound to jobID
// and store. Each execution strand gets its own holder, so concurrent jobs
// stay isolated from one another and from the process-wide holder.
func WithScope(ctx context.Context, jobID string, store core.Store) context.Context {
	c := New()
	c.jobID = jobID
	c.store = store
	return context.WithValue(ctx, scopeKey{}, c)
}

// FromContext returns the holder bound to this execution strand, or nil when
// ctx does not carry one.
func FromContext(ctx context.Context) *Context {
	if c, ok := ctx.Value(scopeKey{}).(*Context); ok {
		return c
	}
	return nil
}

// JobID returns the job ID bound to this execution strand, or empty string
// when ctx is not inside a job scope. Use this for logging or output keys.
func JobID(ctx context.Context) string {
	c := FromContext(ctx)
	if c == nil {
		return ""
	}
	id, _ := c.ActiveJobID()
	return id
}

// Store returns the store bound to this execution strand, or nil when ctx is
// not inside a job scope.
func Store(ctx context.Context) core.Store {
	c := FromContext(ctx)
	if c == nil {
		return nil
	}
	s, _ := c.ActiveStore()
	return s
}
