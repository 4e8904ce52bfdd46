package domain

// Record represents a newly created collection record that may reference
// a generative function or a workflow.
type Record struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Function   string `json:"function,omitempty"`
	Workflow   string `json:"workflow,omitempty"`
	Input      string `json:"input,omitempty"`
}

// Function is a stored prompt template used by the generate task
type Function struct {
	ID     string `json:"id"     db:"id"     yaml:"id"`
	Name   string `json:"name"   db:"name"   yaml:"name"`
	Prompt string `json:"prompt" db:"prompt" yaml:"prompt"`
}

// Workflow is a stored workflow definition reference
type Workflow struct {
	ID   string `json:"id"   db:"id"   yaml:"id"`
	Name string `json:"name" db:"name" yaml:"name"`
}
