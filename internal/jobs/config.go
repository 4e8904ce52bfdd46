package jobs

import "time"

// Config holds the record hook and job runner settings.
type Config struct {
	Backend         string        `yaml:"backend"` // memory, redis, postgres
	Workers         int           `yaml:"workers"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Timeout         time.Duration `yaml:"timeout"`
	MemoryLimitMB   int           `yaml:"memory_limit_mb"`
	ReclaimAfter    time.Duration `yaml:"reclaim_after"`
	RunOnCreate     bool          `yaml:"run_on_create"`
	GenerateService string        `yaml:"generate_service"`
	GeneratePath    string        `yaml:"generate_path"`
	WorkflowService string        `yaml:"workflow_service"`
	WorkflowPath    string        `yaml:"workflow_path"`
}

// DefaultConfig mirrors the limits every enqueued job carries.
var DefaultConfig = Config{
	Backend:       "memory",
	Workers:       1,
	PollInterval:  time.Second,
	MaxAttempts:   3,
	Timeout:       5000 * time.Millisecond,
	MemoryLimitMB: 128,
	ReclaimAfter:  time.Minute,
	GeneratePath:  "generate",
	WorkflowPath:  "workflows/execute",
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = DefaultConfig.Backend
	}
	if c.Workers <= 0 {
		c.Workers = DefaultConfig.Workers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultConfig.PollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultConfig.Timeout
	}
	if c.MemoryLimitMB <= 0 {
		c.MemoryLimitMB = DefaultConfig.MemoryLimitMB
	}
	if c.ReclaimAfter <= 0 {
		c.ReclaimAfter = DefaultConfig.ReclaimAfter
	}
	// A job still inside its own time budget is not stale.
	if c.ReclaimAfter < c.Timeout {
		c.ReclaimAfter = c.Timeout
	}
	if c.GeneratePath == "" {
		c.GeneratePath = DefaultConfig.GeneratePath
	}
	if c.WorkflowPath == "" {
		c.WorkflowPath = DefaultConfig.WorkflowPath
	}
	return c
}
