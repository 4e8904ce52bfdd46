package jobs

import (
	"errors"
	"net/http"
)

// Service is the name dispatch and runner failures are classified under.
const Service = "jobs"

var (
	ErrInvalidInput     = errors.New("record input is not valid JSON")
	ErrFunctionNotFound = errors.New("function not found")
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrNoHandler        = errors.New("no handler registered")
)

// jobError attaches a vendor code and HTTP status to a dispatch or runner
// failure so the classifier can place it.
type jobError struct {
	code   string
	status int
	err    error
}

func (e *jobError) Error() string {
	return e.err.Error()
}

func (e *jobError) Unwrap() error {
	return e.err
}

func (e *jobError) ErrorCode() string {
	return e.code
}

func (e *jobError) StatusCode() int {
	return e.status
}

func invalidInput(err error) error {
	return &jobError{code: "invalid_input", status: http.StatusUnprocessableEntity, err: err}
}

func notFound(code string, err error) error {
	return &jobError{code: code, status: http.StatusNotFound, err: err}
}
