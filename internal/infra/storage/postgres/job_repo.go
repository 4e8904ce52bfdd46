package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
)

const (
	insertJobQuery = `INSERT INTO jobs (id, kind, name, input, attempts, timeout_ms, memory_limit_mb, status, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, 'pending', $8)`

	dequeueJobQuery = `UPDATE jobs SET status = 'running', attempts = attempts + 1, updated_at = NOW()
WHERE id = (SELECT id FROM jobs WHERE status = 'pending' ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED)
RETURNING id, kind, name, input, attempts, timeout_ms, memory_limit_mb, status, last_error, created_at`

	completeJobQuery = `UPDATE jobs SET status = 'completed', updated_at = NOW() WHERE id = $1`

	failJobQuery = `UPDATE jobs SET status = 'failed', last_error = $2, updated_at = NOW() WHERE id = $1`

	requeueJobQuery = `UPDATE jobs SET status = 'pending', last_error = $2, updated_at = NOW() WHERE id = $1`

	reclaimJobsQuery = `UPDATE jobs SET status = 'pending', last_error = $2, updated_at = NOW()
WHERE status = 'running' AND updated_at < $1`

	jobStatsQuery = `SELECT status, COUNT(*) AS count FROM jobs GROUP BY status`
)

// jobRow is the database shape of domain.Job.
type jobRow struct {
	ID            string         `db:"id"`
	Kind          string         `db:"kind"`
	Name          string         `db:"name"`
	Input         []byte         `db:"input"`
	Attempts      int            `db:"attempts"`
	TimeoutMS     int64          `db:"timeout_ms"`
	MemoryLimitMB int            `db:"memory_limit_mb"`
	Status        string         `db:"status"`
	LastError     sql.NullString `db:"last_error"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r *jobRow) toDomain() (*domain.Job, error) {
	job := &domain.Job{
		ID:            r.ID,
		Kind:          domain.JobKind(r.Kind),
		Name:          r.Name,
		Attempts:      r.Attempts,
		TimeoutMS:     r.TimeoutMS,
		MemoryLimitMB: r.MemoryLimitMB,
		Status:        domain.JobStatus(r.Status),
		LastError:     r.LastError.String,
		CreatedAt:     r.CreatedAt,
	}
	if len(r.Input) > 0 {
		if err := json.Unmarshal(r.Input, &job.Input); err != nil {
			return nil, fmt.Errorf("failed to decode job input: %w", err)
		}
	}
	return job, nil
}

type JobRepo struct {
	db *sqlx.DB
}

func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db.DB}
}

func (r *JobRepo) Enqueue(ctx context.Context, job *domain.Job) error {
	input, err := json.Marshal(job.Input)
	if err != nil {
		return fmt.Errorf("failed to encode job input: %w", err)
	}
	if job.Input == nil {
		input = []byte("{}")
	}
	_, err = r.db.ExecContext(ctx, insertJobQuery,
		job.ID, string(job.Kind), job.Name, string(input),
		job.Attempts, job.TimeoutMS, job.MemoryLimitMB, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (r *JobRepo) Dequeue(ctx context.Context) (*domain.Job, error) {
	var row jobRow
	err := r.db.GetContext(ctx, &row, dequeueJobQuery)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	return row.toDomain()
}

func (r *JobRepo) Complete(ctx context.Context, id string) error {
	return r.exec(ctx, completeJobQuery, id)
}

func (r *JobRepo) Fail(ctx context.Context, id string, msg string) error {
	return r.exec(ctx, failJobQuery, id, msg)
}

func (r *JobRepo) Requeue(ctx context.Context, id string, msg string) error {
	return r.exec(ctx, requeueJobQuery, id, msg)
}

func (r *JobRepo) Stats(ctx context.Context) (domain.QueueStats, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, jobStatsQuery); err != nil {
		return domain.QueueStats{}, fmt.Errorf("failed to count jobs: %w", err)
	}

	var s domain.QueueStats
	for _, row := range rows {
		switch domain.JobStatus(row.Status) {
		case domain.JobStatusPending:
			s.Pending = row.Count
		case domain.JobStatusRunning:
			s.Running = row.Count
		case domain.JobStatusCompleted:
			s.Completed = row.Count
		case domain.JobStatusFailed:
			s.Failed = row.Count
		}
	}
	return s, nil
}

func (r *JobRepo) Reclaim(ctx context.Context, before time.Time, msg string) (int, error) {
	res, err := r.db.ExecContext(ctx, reclaimJobsQuery, before, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim jobs: %w", err)
	}
	return int(n), nil
}

func (r *JobRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n == 0 {
		return storage.ErrJobNotFound
	}
	return nil
}
