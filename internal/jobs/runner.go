package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/metrics"
	"github.com/vietddude/faultline/internal/reporting"
)

// settleTimeout bounds queue writes made after the worker context ended.
const settleTimeout = 5 * time.Second

// Handler executes one job. Returned errors are classified; retryable ones
// put the job back in the queue.
type Handler func(ctx context.Context, job *domain.Job) error

// Runner polls the queue with a fixed pool of workers.
type Runner struct {
	cfg        Config
	queue      storage.JobQueue
	classifier *classify.Classifier
	reporter   reporting.Reporter
	log        *slog.Logger
	wake       chan struct{}

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRunner creates a runner. A nil reporter discards reports.
func NewRunner(cfg Config, queue storage.JobQueue, reporter reporting.Reporter, log *slog.Logger) *Runner {
	if reporter == nil {
		reporter = reporting.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:        cfg.WithDefaults(),
		queue:      queue,
		classifier: classify.New(Service, nil),
		reporter:   reporter,
		log:        log,
		wake:       make(chan struct{}, 1),
		handlers:   make(map[string]Handler),
	}
}

// Handle registers the handler for a job name.
func (r *Runner) Handle(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Wake makes idle workers poll immediately.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Job runner started", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)
	r.reclaim(ctx)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		g.Go(func() error {
			r.work(ctx)
			return nil
		})
	}
	g.Go(func() error {
		r.collectStats(ctx)
		return nil
	})
	return g.Wait()
}

func (r *Runner) work(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain before sleeping
		for {
			ran, err := r.RunOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.log.Error("Job queue unavailable", "error", err)
				}
				break
			}
			if !ran || ctx.Err() != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

// RunOnce claims and executes at most one job. It reports false when the
// queue was empty.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	job, err := r.queue.Dequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to dequeue: %w", err)
	}
	if job == nil {
		return false, nil
	}
	r.execute(ctx, job)
	return true, nil
}

func (r *Runner) execute(ctx context.Context, job *domain.Job) {
	r.mu.RLock()
	h, ok := r.handlers[job.Name]
	r.mu.RUnlock()

	start := time.Now()
	var err error
	if !ok {
		err = notFound("no_handler", fmt.Errorf("%w for %s", ErrNoHandler, job.Name))
	} else {
		err = r.invoke(ctx, h, job)
	}
	metrics.JobDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())

	// Outcome writes must land even when shutdown canceled the worker.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if err == nil {
		r.settle(job, "completed", r.queue.Complete(sctx, job.ID))
		return
	}

	if ctx.Err() != nil {
		r.log.Warn("Job interrupted by shutdown, requeueing", "job", job.ID, "name", job.Name)
		r.settle(job, "interrupted", r.queue.Requeue(sctx, job.ID, "interrupted by shutdown"))
		return
	}

	ne := r.classifier.Classify(err)
	r.reporter.Report(ctx, ne)

	if ne.IsRetryable() && job.Attempts < r.cfg.MaxAttempts {
		r.log.Warn("Job failed, requeueing",
			"job", job.ID,
			"name", job.Name,
			"attempt", job.Attempts,
			"error", ne,
		)
		r.settle(job, "retried", r.queue.Requeue(sctx, job.ID, ne.Message()))
		return
	}

	r.log.Error("Job failed",
		"job", job.ID,
		"name", job.Name,
		"attempt", job.Attempts,
		"error", ne,
	)
	r.settle(job, "failed", r.queue.Fail(sctx, job.ID, ne.Message()))
}

// invoke runs h under the job's time budget. A panicking handler fails the
// job instead of the worker.
func (r *Runner) invoke(ctx context.Context, h Handler, job *domain.Job) (err error) {
	if d := job.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, p)
		}
	}()
	return h(ctx, job)
}

func (r *Runner) settle(job *domain.Job, outcome string, err error) {
	metrics.JobsFinished.WithLabelValues(job.Name, outcome).Inc()
	if err != nil {
		r.log.Error("Failed to record job outcome", "job", job.ID, "outcome", outcome, "error", err)
	}
}

// reclaim requeues jobs left running by a worker that died before settling
// them.
func (r *Runner) reclaim(ctx context.Context) {
	n, err := r.queue.Reclaim(ctx, time.Now().Add(-r.cfg.ReclaimAfter), "reclaimed after worker loss")
	if err != nil {
		r.log.Error("Failed to reclaim stale jobs", "error", err)
		return
	}
	if n > 0 {
		metrics.JobsReclaimed.Add(float64(n))
		r.log.Warn("Reclaimed stale jobs", "count", n, "older_than", r.cfg.ReclaimAfter)
	}
}

func (r *Runner) collectStats(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := r.queue.Stats(ctx)
			if err != nil {
				r.log.Debug("Failed to read queue stats", "error", err)
				continue
			}
			metrics.QueueDepth.WithLabelValues(string(domain.JobStatusPending)).Set(float64(stats.Pending))
			metrics.QueueDepth.WithLabelValues(string(domain.JobStatusRunning)).Set(float64(stats.Running))
			metrics.QueueDepth.WithLabelValues(string(domain.JobStatusCompleted)).Set(float64(stats.Completed))
			metrics.QueueDepth.WithLabelValues(string(domain.JobStatusFailed)).Set(float64(stats.Failed))
		}
	}
}
