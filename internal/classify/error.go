package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// DefaultMessage is used when the raw value carries no message.
const DefaultMessage = "An unknown error occurred"

// NormalizedError is the classified form of a failed third-party call.
// It is immutable once built by a Classifier.
type NormalizedError struct {
	service    string
	name       string
	code       Code
	category   Category
	statusCode int
	message    string
	retryable  bool
	retryAfter time.Duration
	cause      any
	stack      []uintptr
}

func (e *NormalizedError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.serviceLabel(), e.category, e.message)
	if e.statusCode != 0 {
		msg += fmt.Sprintf(" (status %d, code %s)", e.statusCode, e.code.Key())
	} else {
		msg += fmt.Sprintf(" (code %s)", e.code.Key())
	}
	return msg
}

// Unwrap exposes the cause when it is itself an error.
func (e *NormalizedError) Unwrap() error {
	if err, ok := e.cause.(error); ok {
		return err
	}
	return nil
}

func (e *NormalizedError) serviceLabel() string {
	if e.service == "" {
		return "integration"
	}
	return e.service
}

func (e *NormalizedError) Service() string { return e.service }
func (e *NormalizedError) Name() string { return e.name }
func (e *NormalizedError) Code() Code { return e.code }
func (e *NormalizedError) Category() Category { return e.category }
func (e *NormalizedError) StatusCode() int { return e.statusCode }
func (e *NormalizedError) Message() string { return e.message }
func (e *NormalizedError) RetryAfter() time.Duration { return e.retryAfter }

// Cause returns the raw value the error was built from, unmodified.
func (e *NormalizedError) Cause() any { return e.cause }

// IsRetryable reports whether the caller may re-issue the call.
func (e *NormalizedError) IsRetryable() bool { return e.retryable }

func (e *NormalizedError) IsAuthentication() bool { return e.category == CategoryAuthentication }
func (e *NormalizedError) IsAuthorization() bool { return e.category == CategoryAuthorization }
func (e *NormalizedError) IsValidation() bool { return e.category == CategoryValidation }
func (e *NormalizedError) IsNotFound() bool { return e.category == CategoryNotFound }
func (e *NormalizedError) IsRateLimit() bool { return e.category == CategoryRateLimit }
func (e *NormalizedError) IsServer() bool { return e.category == CategoryServer }
func (e *NormalizedError) IsNetwork() bool { return e.category == CategoryNetwork }
func (e *NormalizedError) IsUnknown() bool { return e.category == CategoryUnknown }

// StackTrace returns the frames captured where the error was classified.
func (e *NormalizedError) StackTrace() []runtime.Frame {
	if len(e.stack) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(e.stack)
	var out []runtime.Frame
	for {
		f, more := frames.Next()
		out = append(out, f)
		if !more {
			break
		}
	}
	return out
}

type normalizedJSON struct {
	Name       string   `json:"name"`
	Message    string   `json:"message"`
	Code       Code     `json:"code"`
	Category   Category `json:"category"`
	StatusCode int      `json:"statusCode,omitempty"`
	Retryable  bool     `json:"retryable"`
}

// MarshalJSON emits the telemetry form. The cause is never included.
func (e *NormalizedError) MarshalJSON() ([]byte, error) {
	return json.Marshal(normalizedJSON{
		Name:       e.name,
		Message:    e.message,
		Code:       e.code,
		Category:   e.category,
		StatusCode: e.statusCode,
		Retryable:  e.retryable,
	})
}

func (e *NormalizedError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("service", e.serviceLabel()),
		slog.String("category", e.category.String()),
		slog.String("code", e.code.Key()),
		slog.Bool("retryable", e.retryable),
		slog.String("message", e.message),
	}
	if e.statusCode != 0 {
		attrs = append(attrs, slog.Int("status", e.statusCode))
	}
	return slog.GroupValue(attrs...)
}

// As finds the first NormalizedError in err's chain.
func As(err error) (*NormalizedError, bool) {
	var ne *NormalizedError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}
