// Package jobs reacts to record creation by enqueueing generate tasks and
// workflow executions, and runs them against the configured services.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/metrics"
	"github.com/vietddude/faultline/internal/reporting"
)

// Dispatcher turns new records into queued jobs.
type Dispatcher struct {
	cfg        Config
	queue      storage.JobQueue
	finder     storage.RecordFinder
	classifier *classify.Classifier
	reporter   reporting.Reporter
	log        *slog.Logger
	runner     *Runner
	now        func() time.Time
}

// NewDispatcher creates a dispatcher. A nil reporter discards reports.
func NewDispatcher(
	cfg Config,
	queue storage.JobQueue,
	finder storage.RecordFinder,
	reporter reporting.Reporter,
	log *slog.Logger,
) *Dispatcher {
	if reporter == nil {
		reporter = reporting.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		cfg:        cfg.WithDefaults(),
		queue:      queue,
		finder:     finder,
		classifier: classify.New(Service, nil),
		reporter:   reporter,
		log:        log,
		now:        time.Now,
	}
}

// AttachRunner lets run_on_create wake the runner right after enqueue.
func (d *Dispatcher) AttachRunner(r *Runner) {
	d.runner = r
}

// OnRecordCreate enqueues the job a record asks for. A record referencing
// a function gets a generate task; otherwise one referencing a workflow
// gets an executeWorkflow job. Records with neither return nil, nil.
// Failures come back as *classify.NormalizedError.
func (d *Dispatcher) OnRecordCreate(ctx context.Context, rec domain.Record) (*domain.Job, error) {
	job, err := d.build(ctx, rec)
	if err != nil {
		return nil, d.fail(ctx, err)
	}
	if job == nil {
		d.log.Debug("Record has no job reference", "record", rec.ID, "collection", rec.Collection)
		return nil, nil
	}

	if err := d.queue.Enqueue(ctx, job); err != nil {
		return nil, d.fail(ctx, fmt.Errorf("failed to enqueue %s: %w", job.Name, err))
	}
	metrics.JobsEnqueued.WithLabelValues(string(job.Kind), job.Name).Inc()
	d.log.Info("Job enqueued",
		"job", job.ID,
		"name", job.Name,
		"record", rec.ID,
	)

	if d.cfg.RunOnCreate && d.runner != nil {
		d.runner.Wake()
	}
	return job, nil
}

func (d *Dispatcher) build(ctx context.Context, rec domain.Record) (*domain.Job, error) {
	switch {
	case rec.Function != "":
		fn, err := d.finder.FindFunction(ctx, rec.Function)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("function_not_found", fmt.Errorf("%w: %s", ErrFunctionNotFound, rec.Function))
		}
		if err != nil {
			return nil, err
		}
		return d.newJob(domain.JobKindTask, domain.TaskGenerate, map[string]any{
			"prompt":      RenderPrompt(fn.Prompt, rec.Input),
			"function_id": fn.ID,
			"function":    fn.Name,
			"record_id":   rec.ID,
			"collection":  rec.Collection,
		}), nil

	case rec.Workflow != "":
		wf, err := d.finder.FindWorkflow(ctx, rec.Workflow)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("workflow_not_found", fmt.Errorf("%w: %s", ErrWorkflowNotFound, rec.Workflow))
		}
		if err != nil {
			return nil, err
		}
		input, err := ParseInput(rec.Input)
		if err != nil {
			return nil, err
		}
		return d.newJob(domain.JobKindWorkflow, domain.WorkflowExecuteWorkflow, map[string]any{
			"workflow_id": wf.ID,
			"workflow":    wf.Name,
			"record_id":   rec.ID,
			"collection":  rec.Collection,
			"input":       input,
		}), nil
	}
	return nil, nil
}

func (d *Dispatcher) newJob(kind domain.JobKind, name string, input map[string]any) *domain.Job {
	return &domain.Job{
		ID:            uuid.NewString(),
		Kind:          kind,
		Name:          name,
		Input:         input,
		TimeoutMS:     d.cfg.Timeout.Milliseconds(),
		MemoryLimitMB: d.cfg.MemoryLimitMB,
		Status:        domain.JobStatusPending,
		CreatedAt:     d.now().UTC(),
	}
}

func (d *Dispatcher) fail(ctx context.Context, err error) *classify.NormalizedError {
	ne := d.classifier.Classify(err)
	d.reporter.Report(ctx, ne)
	return ne
}

// ParseInput decodes a workflow record input. Blank input is an empty
// object.
func ParseInput(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, invalidInput(fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}
	return v, nil
}
