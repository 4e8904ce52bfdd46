package reporting

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/faultline/internal/classify"
)

// StreamReporter appends the serialized error to a Redis stream so that
// telemetry consumers can follow failures across instances.
type StreamReporter struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
	log    *slog.Logger
}

// NewStreamReporter creates a reporter writing to stream, trimmed to
// roughly maxLen entries when maxLen > 0.
func NewStreamReporter(rdb redis.Cmdable, stream string, maxLen int64) *StreamReporter {
	return &StreamReporter{
		rdb:    rdb,
		stream: stream,
		maxLen: maxLen,
		log:    slog.Default().With("component", "stream_reporter"),
	}
}

func (r *StreamReporter) Report(ctx context.Context, err *classify.NormalizedError) {
	payload, mErr := json.Marshal(err)
	if mErr != nil {
		r.log.Warn("Failed to encode error report", "error", mErr)
		return
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: []any{
			"service", serviceLabel(err),
			"category", err.Category().String(),
			"retryable", strconv.FormatBool(err.IsRetryable()),
			"payload", string(payload),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if xErr := r.rdb.XAdd(ctx, args).Err(); xErr != nil {
		r.log.Warn("Failed to publish error report", "stream", r.stream, "error", xErr)
	}
}
