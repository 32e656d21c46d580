// Package execctx tracks which job is currently executing and which store
// receives its outputs.
//
// A Context is a small mutable cell holding the active job's ID and a
// non-owning reference to the store its outputs are persisted to. Code deep
// inside a handler can discover this binding without it being threaded
// through every call boundary.
//
// Two access patterns are supported. The package-level Bind, Reset,
// ActiveJobID and ActiveStore operate on a single process-wide holder, which
// is only safe when at most one job executes at a time in the process. When
// jobs run concurrently, each execution strand carries its own holder via
// WithScope and FromContext, so concurrently running jobs never observe each
// other's binding.
package execctx
