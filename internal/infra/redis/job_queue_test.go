package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
)

func encode(t *testing.T, job domain.Job) string {
	t.Helper()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestJobQueue_EnqueueDequeue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(Wrap(db, "test"))
	claimed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	q.now = func() time.Time { return claimed }
	ctx := context.Background()

	job := domain.Job{ID: "j1", Kind: domain.JobKindTask, Name: domain.TaskGenerate, Input: map[string]any{"prompt": "hi"}}
	pending := job
	pending.Status = domain.JobStatusPending
	running := pending
	running.Status = domain.JobStatusRunning
	running.Attempts = 1
	running.StartedAt = claimed

	mock.ExpectHSet("test:jobs", "j1", encode(t, pending)).SetVal(1)
	mock.ExpectLPush("test:jobs:pending", "j1").SetVal(1)
	mock.ExpectRPop("test:jobs:pending").SetVal("j1")
	mock.ExpectHGet("test:jobs", "j1").SetVal(encode(t, pending))
	mock.ExpectHSet("test:jobs", "j1", encode(t, running)).SetVal(0)
	mock.ExpectRPop("test:jobs:pending").RedisNil()

	if err := q.Enqueue(ctx, &job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got.ID != "j1" || got.Attempts != 1 || got.Status != domain.JobStatusRunning || got.Input["prompt"] != "hi" || !got.StartedAt.Equal(claimed) {
		t.Errorf("unexpected job: %+v", got)
	}
	got, err = q.Dequeue(ctx)
	if err != nil || got != nil {
		t.Errorf("empty queue: got %v, %v", got, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestJobQueue_Transitions(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(Wrap(db, ""))
	ctx := context.Background()

	running := domain.Job{ID: "j1", Name: domain.TaskGenerate, Status: domain.JobStatusRunning, Attempts: 1}
	requeued := running
	requeued.Status = domain.JobStatusPending
	requeued.LastError = "busy"
	failed := running
	failed.Status = domain.JobStatusFailed
	failed.LastError = "bad input"

	mock.ExpectHGet("faultline:jobs", "j1").SetVal(encode(t, running))
	mock.ExpectHSet("faultline:jobs", "j1", encode(t, requeued)).SetVal(0)
	mock.ExpectLPush("faultline:jobs:pending", "j1").SetVal(1)
	mock.ExpectHGet("faultline:jobs", "j1").SetVal(encode(t, running))
	mock.ExpectHSet("faultline:jobs", "j1", encode(t, failed)).SetVal(0)
	mock.ExpectHGet("faultline:jobs", "gone").RedisNil()

	if err := q.Requeue(ctx, "j1", "busy"); err != nil {
		t.Errorf("Requeue: %v", err)
	}
	if err := q.Fail(ctx, "j1", "bad input"); err != nil {
		t.Errorf("Fail: %v", err)
	}
	if err := q.Complete(ctx, "gone"); !errors.Is(err, storage.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestJobQueue_Stats(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(Wrap(db, "test"))

	mock.ExpectHVals("test:jobs").SetVal([]string{
		encode(t, domain.Job{ID: "a", Status: domain.JobStatusPending}),
		encode(t, domain.Job{ID: "b", Status: domain.JobStatusCompleted}),
		encode(t, domain.Job{ID: "c", Status: domain.JobStatusCompleted}),
		"not json",
	})

	stats, err := q.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats != (domain.QueueStats{Pending: 1, Completed: 2}) {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestJobQueue_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(Wrap(db, "test"))

	mock.ExpectRPop("test:jobs:pending").SetErr(errors.New("connection refused"))
	if _, err := q.Dequeue(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestJobQueue_Reclaim(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewJobQueue(Wrap(db, "test"))
	cutoff := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	stale := domain.Job{ID: "stale", Name: domain.TaskGenerate, Status: domain.JobStatusRunning, Attempts: 1, StartedAt: cutoff.Add(-time.Minute)}
	fresh := domain.Job{ID: "fresh", Name: domain.TaskGenerate, Status: domain.JobStatusRunning, Attempts: 1, StartedAt: cutoff.Add(time.Minute)}
	done := domain.Job{ID: "done", Status: domain.JobStatusCompleted}
	requeued := stale
	requeued.Status = domain.JobStatusPending
	requeued.LastError = "lost"
	requeued.StartedAt = time.Time{}

	mock.ExpectHVals("test:jobs").SetVal([]string{encode(t, stale), encode(t, fresh), encode(t, done)})
	mock.ExpectHGet("test:jobs", "stale").SetVal(encode(t, stale))
	mock.ExpectHSet("test:jobs", "stale", encode(t, requeued)).SetVal(0)
	mock.ExpectLPush("test:jobs:pending", "stale").SetVal(1)

	n, err := q.Reclaim(context.Background(), cutoff, "lost")
	if err != nil || n != 1 {
		t.Errorf("Reclaim = %d, %v, want 1", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
