package domain

import (
	"time"
)

// Job is a unit of background work enqueued by the record hook
type Job struct {
	ID            string         `json:"id"`
	Kind          JobKind        `json:"kind"`
	Name          string         `json:"name"`
	Input         map[string]any `json:"input"`
	Attempts      int            `json:"attempts"`
	TimeoutMS     int64          `json:"timeout_ms"`
	MemoryLimitMB int            `json:"memory_limit_mb"`
	Status        JobStatus      `json:"status"`
	LastError     string         `json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     time.Time      `json:"started_at,omitzero"`
}

// Timeout returns the execution budget of the job.
func (j *Job) Timeout() time.Duration {
	return time.Duration(j.TimeoutMS) * time.Millisecond
}

type JobKind string

const (
	JobKindTask     JobKind = "task"
	JobKindWorkflow JobKind = "workflow"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job names understood by the runner
const (
	TaskGenerate            = "generate"
	WorkflowExecuteWorkflow = "executeWorkflow"
)

// QueueStats summarizes queue contents by status
type QueueStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
