// Package reporting delivers NormalizedErrors to logs, metrics and streams.
package reporting

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/metrics"
)

// Reporter receives every classified failure. Implementations must not
// fail the caller; delivery problems are logged and dropped.
type Reporter interface {
	Report(ctx context.Context, err *classify.NormalizedError)
}

// Nop discards reports.
type Nop struct{}

func (Nop) Report(context.Context, *classify.NormalizedError) {}

// LogReporter writes one structured log line per error.
type LogReporter struct {
	log *slog.Logger
}

func NewLogReporter(log *slog.Logger) *LogReporter {
	if log == nil {
		log = slog.Default()
	}
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(ctx context.Context, err *classify.NormalizedError) {
	level := slog.LevelError
	if err.IsRetryable() {
		level = slog.LevelWarn
	}
	r.log.Log(ctx, level, "Integration call failed", "error", err)
}

// MetricsReporter counts errors per service, category and retry decision.
type MetricsReporter struct{}

func NewMetricsReporter() *MetricsReporter {
	return &MetricsReporter{}
}

func (MetricsReporter) Report(_ context.Context, err *classify.NormalizedError) {
	metrics.ErrorsClassified.WithLabelValues(
		serviceLabel(err),
		err.Category().String(),
		strconv.FormatBool(err.IsRetryable()),
	).Inc()
}

// Multi fans a report out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, err *classify.NormalizedError) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, err)
		}
	}
}

func serviceLabel(err *classify.NormalizedError) string {
	if err.Service() == "" {
		return "unknown"
	}
	return err.Service()
}
