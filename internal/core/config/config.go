package config

import (
	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/integration"
	redisclient "github.com/vietddude/faultline/internal/infra/redis"
	"github.com/vietddude/faultline/internal/infra/storage/postgres"
	"github.com/vietddude/faultline/internal/jobs"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig            `yaml:"server"`
	Logging  LoggingConfig           `yaml:"logging"`
	Services []ServiceConfig         `yaml:"services"`
	Retry    integration.RetryConfig `yaml:"retry"`
	Jobs     jobs.Config             `yaml:"jobs"`
	Redis    redisclient.Config      `yaml:"redis"`
	Database postgres.Config         `yaml:"database"`
	Records  RecordsConfig           `yaml:"records"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ServiceConfig describes one third-party integration.
type ServiceConfig struct {
	Name               string                    `yaml:"name"`
	integration.Config `yaml:",inline"`
	Overrides          map[string]OverrideConfig `yaml:"overrides"`
}

// OverrideConfig pins a vendor code to a category. Retryable defaults to
// the category's policy when omitted.
type OverrideConfig struct {
	Category  classify.Category `yaml:"category"`
	Retryable *bool             `yaml:"retryable"`
}

// RecordsConfig seeds the in-memory record store.
type RecordsConfig struct {
	Functions []domain.Function `yaml:"functions"`
	Workflows []domain.Workflow `yaml:"workflows"`
}

// ClassifierOverrides converts the YAML table into classifier overrides.
func (s ServiceConfig) ClassifierOverrides() classify.Overrides {
	if len(s.Overrides) == 0 {
		return nil
	}
	out := make(classify.Overrides, len(s.Overrides))
	for code, o := range s.Overrides {
		retryable := o.Category.Retryable()
		if o.Retryable != nil {
			retryable = *o.Retryable
		}
		out[code] = classify.Override{Category: o.Category, Retryable: retryable}
	}
	return out
}

// ServiceDefs lists the classifier definitions of every configured service.
func (c *AppConfig) ServiceDefs() []classify.ServiceDef {
	defs := make([]classify.ServiceDef, 0, len(c.Services))
	for _, s := range c.Services {
		defs = append(defs, classify.ServiceDef{Name: s.Name, Overrides: s.ClassifierOverrides()})
	}
	return defs
}

// Service returns the configuration of the named integration.
func (c *AppConfig) Service(name string) (ServiceConfig, bool) {
	for _, s := range c.Services {
		if s.Name == name {
			return s, true
		}
	}
	return ServiceConfig{}, false
}
