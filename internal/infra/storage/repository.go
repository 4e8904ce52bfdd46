package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

var (
	// ErrNotFound is returned when a referenced function or workflow doesn't exist
	ErrNotFound = errors.New("record not found")

	// ErrJobNotFound is returned when a job ID is unknown to the queue
	ErrJobNotFound = errors.New("job not found")
)

// JobQueue stores background jobs until a runner picks them up
type JobQueue interface {
	// Enqueue stores a pending job
	Enqueue(ctx context.Context, job *domain.Job) error

	// Dequeue claims the oldest pending job, marks it running and bumps its
	// attempt count. It returns nil, nil when nothing is pending.
	Dequeue(ctx context.Context) (*domain.Job, error)

	// Complete marks a running job as completed
	Complete(ctx context.Context, id string) error

	// Fail marks a job as permanently failed
	Fail(ctx context.Context, id string, msg string) error

	// Requeue puts a job back to pending after a retryable failure
	Requeue(ctx context.Context, id string, msg string) error

	// Stats counts jobs per status
	Stats(ctx context.Context) (domain.QueueStats, error)

	// Reclaim puts jobs that were claimed before the given time and never
	// settled back to pending. It returns how many were reclaimed.
	Reclaim(ctx context.Context, before time.Time, msg string) (int, error)
}

// RecordFinder resolves the function and workflow references of a record
type RecordFinder interface {
	// FindFunction returns ErrNotFound when id is unknown
	FindFunction(ctx context.Context, id string) (*domain.Function, error)

	// FindWorkflow returns ErrNotFound when id is unknown
	FindWorkflow(ctx context.Context, id string) (*domain.Workflow, error)
}
