package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
)

// JobQueue keeps job bodies in a hash keyed by ID and pending IDs in a
// list (LPUSH on enqueue, RPOP on dequeue).
type JobQueue struct {
	c   *Client
	now func() time.Time
}

func NewJobQueue(c *Client) *JobQueue {
	return &JobQueue{c: c, now: time.Now}
}

func (q *JobQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	stored := *job
	stored.Status = domain.JobStatusPending
	if err := q.save(ctx, &stored); err != nil {
		return err
	}
	if err := q.c.rdb.LPush(ctx, q.c.pendingKey(), job.ID).Err(); err != nil {
		return fmt.Errorf("lpush failed: %w", err)
	}
	return nil
}

func (q *JobQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	for {
		id, err := q.c.rdb.RPop(ctx, q.c.pendingKey()).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("rpop failed: %w", err)
		}

		job, err := q.load(ctx, id)
		if errors.Is(err, storage.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		job.Status = domain.JobStatusRunning
		job.Attempts++
		job.StartedAt = q.now().UTC()
		if err := q.save(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}
}

func (q *JobQueue) Complete(ctx context.Context, id string) error {
	return q.update(ctx, id, func(j *domain.Job) {
		j.Status = domain.JobStatusCompleted
	})
}

func (q *JobQueue) Fail(ctx context.Context, id string, msg string) error {
	return q.update(ctx, id, func(j *domain.Job) {
		j.Status = domain.JobStatusFailed
		j.LastError = msg
	})
}

func (q *JobQueue) Requeue(ctx context.Context, id string, msg string) error {
	if err := q.update(ctx, id, func(j *domain.Job) {
		j.Status = domain.JobStatusPending
		j.LastError = msg
		j.StartedAt = time.Time{}
	}); err != nil {
		return err
	}
	if err := q.c.rdb.LPush(ctx, q.c.pendingKey(), id).Err(); err != nil {
		return fmt.Errorf("lpush failed: %w", err)
	}
	return nil
}

func (q *JobQueue) Stats(ctx context.Context) (domain.QueueStats, error) {
	vals, err := q.c.rdb.HVals(ctx, q.c.jobsKey()).Result()
	if err != nil {
		return domain.QueueStats{}, fmt.Errorf("hvals failed: %w", err)
	}

	var s domain.QueueStats
	for _, v := range vals {
		var j domain.Job
		if err := json.Unmarshal([]byte(v), &j); err != nil {
			continue
		}
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

// Reclaim scans the job hash for running jobs claimed before the cutoff and
// pushes them back onto the pending list.
func (q *JobQueue) Reclaim(ctx context.Context, before time.Time, msg string) (int, error) {
	vals, err := q.c.rdb.HVals(ctx, q.c.jobsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("hvals failed: %w", err)
	}

	n := 0
	for _, v := range vals {
		var j domain.Job
		if err := json.Unmarshal([]byte(v), &j); err != nil {
			continue
		}
		if j.Status != domain.JobStatusRunning || !j.StartedAt.Before(before) {
			continue
		}
		if err := q.Requeue(ctx, j.ID, msg); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (q *JobQueue) update(ctx context.Context, id string, fn func(*domain.Job)) error {
	job, err := q.load(ctx, id)
	if err != nil {
		return err
	}
	fn(job)
	return q.save(ctx, job)
}

func (q *JobQueue) load(ctx context.Context, id string) (*domain.Job, error) {
	data, err := q.c.rdb.HGet(ctx, q.c.jobsKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hget failed: %w", err)
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("invalid job payload %s: %w", id, err)
	}
	return &job, nil
}

func (q *JobQueue) save(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.c.rdb.HSet(ctx, q.c.jobsKey(), job.ID, string(data)).Err(); err != nil {
		return fmt.Errorf("hset failed: %w", err)
	}
	return nil
}
