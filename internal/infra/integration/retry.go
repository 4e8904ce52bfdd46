package integration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/metrics"
)

// ErrRetriesExhausted wraps the last failure once every attempt was used.
var ErrRetriesExhausted = errors.New("retries exhausted")

// CallWithRetry executes fn with exponential backoff. Only failures the
// classifier marks retryable are re-issued; anything else is returned
// immediately as a NormalizedError.
func CallWithRetry[T any](
	ctx context.Context,
	config RetryConfig,
	classifier *classify.Classifier,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	var lastErr *classify.NormalizedError

	config = config.WithDefaults()
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = classifier.Classify(err)
		if !lastErr.IsRetryable() {
			return zero, lastErr
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := calculateBackoff(attempt, config)
		if hint := lastErr.RetryAfter(); hint > delay {
			delay = min(hint, config.MaxDelay)
		}
		// Waiting past the deadline cannot succeed; hand the retryable
		// failure back so an outer layer can reschedule it.
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return zero, lastErr
		}
		metrics.RetryAttempts.WithLabelValues(classifier.Service(), lastErr.Category().String()).Inc()

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ctx.Err(), lastErr)
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, config.MaxAttempts, lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
