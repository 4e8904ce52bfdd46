package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

var (
	ErrDuplicateService = errors.New("duplicate service")
	ErrUnnamedService   = errors.New("service without name")
	ErrUnknownBackend   = errors.New("unknown jobs backend")
	ErrMissingBackend   = errors.New("jobs backend is not configured")
	ErrUnknownService   = errors.New("unknown service")
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Retry = cfg.Retry.WithDefaults()
	cfg.Jobs = cfg.Jobs.WithDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	seen := make(map[string]struct{}, len(c.Services))
	for i, s := range c.Services {
		if s.Name == "" {
			return fmt.Errorf("services[%d]: %w", i, ErrUnnamedService)
		}
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateService, s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	for _, ref := range []string{c.Jobs.GenerateService, c.Jobs.WorkflowService} {
		if _, ok := seen[ref]; ref != "" && !ok {
			return fmt.Errorf("%w: jobs references %q", ErrUnknownService, ref)
		}
	}

	switch c.Jobs.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("%w: redis.url is required for backend redis", ErrMissingBackend)
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database.url is required for backend postgres", ErrMissingBackend)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Jobs.Backend)
	}
	return nil
}
