package core

import (
	"context"
	"time"
)

// Starter is the interface for starting workers.
type Starter interface {
	Start(ctx context.Context) error
}

// Store defines the persistence backend for jobs and their outputs.
//
// A Store is constructed and torn down by its owner; the execution context
// and the workers only hold references to it and never manage its lifetime.
type Store interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Job lifecycle
	Enqueue(ctx context.Context, job *Job) error
	EnqueueUnique(ctx context.Context, job *Job, uniqueKey string) error
	Dequeue(ctx context.Context, queues []string, workerID string) (*Job, error)
	Complete(ctx context.Context, jobID string, workerID string) error
	Fail(ctx context.Context, jobID string, workerID string, errMsg string, retryAt *time.Time) error

	// Locking
	Heartbeat(ctx context.Context, jobID string, workerID string) error
	ReleaseStaleLocks(ctx context.Context, staleDuration time.Duration) (int64, error)

	// Queries
	GetJob(ctx context.Context, jobID string) (*Job, error)
	GetJobsByStatus(ctx context.Context, status JobStatus, limit int) ([]*Job, error)

	// Outputs
	SaveOutput(ctx context.Context, jobID string, workerID string, output []byte) error
	GetOutput(ctx context.Context, jobID string) ([]byte, error)
}
