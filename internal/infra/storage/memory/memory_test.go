package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
)

func TestJobQueue(t *testing.T) {
	ctx := context.Background()
	q := NewJobQueue(NewMemoryStorage())

	// Empty queue
	job, err := q.Dequeue(ctx)
	if err != nil || job != nil {
		t.Fatalf("expected nil job from empty queue, got %v, %v", job, err)
	}

	_ = q.Enqueue(ctx, &domain.Job{ID: "a", Name: domain.TaskGenerate})
	_ = q.Enqueue(ctx, &domain.Job{ID: "b", Name: domain.WorkflowExecuteWorkflow})

	// FIFO order, attempts bumped
	job, _ = q.Dequeue(ctx)
	if job == nil || job.ID != "a" || job.Attempts != 1 || job.Status != domain.JobStatusRunning {
		t.Fatalf("unexpected first job: %+v", job)
	}

	if err := q.Requeue(ctx, "a", "busy"); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}
	job, _ = q.Dequeue(ctx)
	if job.ID != "b" {
		t.Errorf("expected b before requeued a, got %s", job.ID)
	}
	if err := q.Complete(ctx, "b"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	job, _ = q.Dequeue(ctx)
	if job.ID != "a" || job.Attempts != 2 || job.LastError != "busy" {
		t.Errorf("requeued job not returned correctly: %+v", job)
	}
	if err := q.Fail(ctx, "a", "bad input"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	stats, _ := q.Stats(ctx)
	if stats != (domain.QueueStats{Completed: 1, Failed: 1}) {
		t.Errorf("unexpected stats: %+v", stats)
	}

	if err := q.Complete(ctx, "missing"); !errors.Is(err, storage.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if got, ok := q.Get("a"); !ok || got.Status != domain.JobStatusFailed {
		t.Errorf("Get(a) = %+v, %v", got, ok)
	}
}

func TestRecordFinder(t *testing.T) {
	ctx := context.Background()
	f := NewRecordFinder(NewMemoryStorage())
	f.Seed(
		[]domain.Function{{ID: "fn1", Name: "summarize", Prompt: "Summarize: {input}"}},
		[]domain.Workflow{{ID: "wf1", Name: "onboarding"}},
	)

	fn, err := f.FindFunction(ctx, "fn1")
	if err != nil || fn.Prompt != "Summarize: {input}" {
		t.Errorf("FindFunction = %+v, %v", fn, err)
	}
	if _, err := f.FindFunction(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	wf, err := f.FindWorkflow(ctx, "wf1")
	if err != nil || wf.Name != "onboarding" {
		t.Errorf("FindWorkflow = %+v, %v", wf, err)
	}
	if _, err := f.FindWorkflow(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJobQueue_Reclaim(t *testing.T) {
	ctx := context.Background()
	q := NewJobQueue(NewMemoryStorage())

	_ = q.Enqueue(ctx, &domain.Job{ID: "old", Name: domain.TaskGenerate})
	_ = q.Enqueue(ctx, &domain.Job{ID: "idle", Name: domain.TaskGenerate})
	if job, _ := q.Dequeue(ctx); job.ID != "old" {
		t.Fatalf("unexpected claim: %+v", job)
	}

	if n, _ := q.Reclaim(ctx, time.Now().Add(-time.Hour), "lost"); n != 0 {
		t.Errorf("recently claimed job reclaimed: %d", n)
	}
	n, err := q.Reclaim(ctx, time.Now().Add(time.Second), "lost")
	if err != nil || n != 1 {
		t.Fatalf("Reclaim = %d, %v, want 1", n, err)
	}
	got, _ := q.Get("old")
	if got.Status != domain.JobStatusPending || got.LastError != "lost" || !got.StartedAt.IsZero() {
		t.Errorf("reclaimed job: %+v", got)
	}

	// Both jobs are claimable again, in queue order.
	first, _ := q.Dequeue(ctx)
	second, _ := q.Dequeue(ctx)
	if first.ID != "idle" || second.ID != "old" || second.Attempts != 2 {
		t.Errorf("claims after reclaim: %+v, %+v", first, second)
	}
}
