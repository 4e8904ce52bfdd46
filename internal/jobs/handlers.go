package jobs

import (
	"context"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/integration"
)

// Poster sends a JSON body to a third-party service. Failures are
// *classify.NormalizedError values.
type Poster interface {
	PostJSON(ctx context.Context, path string, body, out any) error
}

// Executor forwards jobs to the service that runs them.
type Executor struct {
	client     Poster
	classifier *classify.Classifier
	retry      integration.RetryConfig
	path       string
}

// NewExecutor creates an executor posting to path. Retryable failures are
// retried in-process per retry before the runner sees them.
func NewExecutor(
	client Poster,
	classifier *classify.Classifier,
	retry integration.RetryConfig,
	path string,
) *Executor {
	return &Executor{client: client, classifier: classifier, retry: retry, path: path}
}

// jobRequest is the body sent for every job.
type jobRequest struct {
	JobID         string         `json:"job_id"`
	Name          string         `json:"name"`
	Attempt       int            `json:"attempt"`
	TimeoutMS     int64          `json:"timeout_ms"`
	MemoryLimitMB int            `json:"memory_limit_mb"`
	Input         map[string]any `json:"input"`
}

// Handle implements Handler.
func (e *Executor) Handle(ctx context.Context, job *domain.Job) error {
	req := jobRequest{
		JobID:         job.ID,
		Name:          job.Name,
		Attempt:       job.Attempts,
		TimeoutMS:     job.TimeoutMS,
		MemoryLimitMB: job.MemoryLimitMB,
		Input:         job.Input,
	}
	_, err := integration.CallWithRetry(ctx, e.retry, e.classifier, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.client.PostJSON(ctx, e.path, req, nil)
	})
	return err
}
