package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
)

type MemoryStorage struct {
	jobs      map[string]*domain.Job
	pending   []string
	functions map[string]*domain.Function
	workflows map[string]*domain.Workflow
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:      make(map[string]*domain.Job),
		functions: make(map[string]*domain.Function),
		workflows: make(map[string]*domain.Workflow),
	}
}

// -----------------------------------------------------------------------------
// Job Queue
// -----------------------------------------------------------------------------

type JobQueue struct {
	store *MemoryStorage
}

func NewJobQueue(store *MemoryStorage) *JobQueue {
	return &JobQueue{store: store}
}

func (q *JobQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	stored := *job
	stored.Status = domain.JobStatusPending
	q.store.jobs[job.ID] = &stored
	q.store.pending = append(q.store.pending, job.ID)
	return nil
}

func (q *JobQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	for len(q.store.pending) > 0 {
		id := q.store.pending[0]
		q.store.pending = q.store.pending[1:]
		job, ok := q.store.jobs[id]
		if !ok || job.Status != domain.JobStatusPending {
			continue
		}
		job.Status = domain.JobStatusRunning
		job.Attempts++
		job.StartedAt = time.Now().UTC()
		out := *job
		return &out, nil
	}
	return nil, nil
}

func (q *JobQueue) Complete(ctx context.Context, id string) error {
	return q.update(id, func(j *domain.Job) {
		j.Status = domain.JobStatusCompleted
	})
}

func (q *JobQueue) Fail(ctx context.Context, id string, msg string) error {
	return q.update(id, func(j *domain.Job) {
		j.Status = domain.JobStatusFailed
		j.LastError = msg
	})
}

func (q *JobQueue) Requeue(ctx context.Context, id string, msg string) error {
	if err := q.update(id, func(j *domain.Job) {
		j.Status = domain.JobStatusPending
		j.LastError = msg
		j.StartedAt = time.Time{}
	}); err != nil {
		return err
	}
	q.store.mu.Lock()
	q.store.pending = append(q.store.pending, id)
	q.store.mu.Unlock()
	return nil
}

func (q *JobQueue) Stats(ctx context.Context) (domain.QueueStats, error) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()
	var s domain.QueueStats
	for _, j := range q.store.jobs {
		switch j.Status {
		case domain.JobStatusPending:
			s.Pending++
		case domain.JobStatusRunning:
			s.Running++
		case domain.JobStatusCompleted:
			s.Completed++
		case domain.JobStatusFailed:
			s.Failed++
		}
	}
	return s, nil
}

func (q *JobQueue) Reclaim(ctx context.Context, before time.Time, msg string) (int, error) {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	n := 0
	for id, j := range q.store.jobs {
		if j.Status != domain.JobStatusRunning || !j.StartedAt.Before(before) {
			continue
		}
		j.Status = domain.JobStatusPending
		j.LastError = msg
		j.StartedAt = time.Time{}
		q.store.pending = append(q.store.pending, id)
		n++
	}
	return n, nil
}

// Get returns a copy of a stored job.
func (q *JobQueue) Get(id string) (*domain.Job, bool) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()
	j, ok := q.store.jobs[id]
	if !ok {
		return nil, false
	}
	out := *j
	return &out, true
}

func (q *JobQueue) update(id string, fn func(*domain.Job)) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	j, ok := q.store.jobs[id]
	if !ok {
		return storage.ErrJobNotFound
	}
	fn(j)
	return nil
}

// -----------------------------------------------------------------------------
// Record Finder
// -----------------------------------------------------------------------------

type RecordFinder struct {
	store *MemoryStorage
}

func NewRecordFinder(store *MemoryStorage) *RecordFinder {
	return &RecordFinder{store: store}
}

// Seed registers functions and workflows, replacing entries with the same ID.
func (r *RecordFinder) Seed(functions []domain.Function, workflows []domain.Workflow) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range functions {
		f := functions[i]
		r.store.functions[f.ID] = &f
	}
	for i := range workflows {
		w := workflows[i]
		r.store.workflows[w.ID] = &w
	}
}

func (r *RecordFinder) FindFunction(ctx context.Context, id string) (*domain.Function, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	f, ok := r.store.functions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *f
	return &out, nil
}

func (r *RecordFinder) FindWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	w, ok := r.store.workflows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *w
	return &out, nil
}
