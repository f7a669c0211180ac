// Package config loads engine configuration from config.yaml with
// environment variable overrides. Secrets only come from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

// Config holds all configuration for queryline-engine.
// Environment variables always override YAML values for fields that support
// both. Secrets (datasource password, model API key) must only come from
// environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Datasource is the connection profile queries run against.
	Datasource DatasourceConfig `yaml:"datasource"`

	// Model configures the optional language-model translation strategy.
	// When no endpoint or key is configured the engine runs pattern-only.
	Model ModelConfig `yaml:"model"`

	// Pipeline holds orchestration settings.
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// DatasourceConfig holds the active datasource connection settings.
type DatasourceConfig struct {
	Engine   string `yaml:"engine" env:"DATASOURCE_ENGINE" env-default:"postgres"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"5432"`
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:"trialsupply"`
	Username string `yaml:"username" env:"DATASOURCE_USERNAME" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML

	// MaxConcurrent bounds in-flight executions against this datasource.
	MaxConcurrent int `yaml:"max_concurrent" env:"DATASOURCE_MAX_CONCURRENT" env-default:"4"`
	// QueueTimeoutSeconds is how long an execution waits for a slot before
	// failing.
	QueueTimeoutSeconds int `yaml:"queue_timeout_seconds" env:"DATASOURCE_QUEUE_TIMEOUT_SECONDS" env-default:"10"`
}

// ModelConfig holds language-model endpoint settings.
type ModelConfig struct {
	Provider string `yaml:"provider" env:"MODEL_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"MODEL_ENDPOINT" env-default:""`
	Name     string `yaml:"name" env:"MODEL_NAME" env-default:""`
	APIKey   string `yaml:"-" env:"MODEL_API_KEY"` // Secret - not in YAML

	TimeoutSeconds int `yaml:"timeout_seconds" env:"MODEL_TIMEOUT_SECONDS" env-default:"30"`
}

// IsAvailable reports whether a model strategy can be constructed.
func (c *ModelConfig) IsAvailable() bool {
	switch c.Provider {
	case "anthropic":
		return c.Name != "" && c.APIKey != ""
	default:
		return c.Name != "" && c.Endpoint != ""
	}
}

// Timeout returns the configured per-call timeout.
func (c *ModelConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	// DefaultLimit is the row limit applied when a request omits one.
	DefaultLimit int `yaml:"default_limit" env:"PIPELINE_DEFAULT_LIMIT" env-default:"100"`
	// SchemaTTLMinutes is how long introspected schemas stay cached.
	SchemaTTLMinutes int `yaml:"schema_ttl_minutes" env:"PIPELINE_SCHEMA_TTL_MINUTES" env-default:"5"`
	// PatternCatalogPath optionally replaces the built-in pattern catalog.
	PatternCatalogPath string `yaml:"pattern_catalog_path" env:"PIPELINE_PATTERN_CATALOG_PATH" env-default:""`
}

// SchemaTTL returns the schema cache TTL.
func (c *PipelineConfig) SchemaTTL() time.Duration {
	return time.Duration(c.SchemaTTLMinutes) * time.Minute
}

// Load reads configuration from path with environment variable overrides.
// The version parameter is injected at build time.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !models.ValidEngineKind(c.Datasource.Engine) {
		return fmt.Errorf("unknown datasource engine %q", c.Datasource.Engine)
	}
	if c.Datasource.MaxConcurrent < 1 {
		return fmt.Errorf("datasource max_concurrent must be at least 1")
	}
	if c.Pipeline.DefaultLimit < 1 || c.Pipeline.DefaultLimit > models.MaxRowLimit {
		return fmt.Errorf("pipeline default_limit must be between 1 and %d", models.MaxRowLimit)
	}
	return nil
}

// Profile builds the connection profile for the configured datasource.
func (c *Config) Profile() *models.ConnectionProfile {
	return &models.ConnectionProfile{
		EngineKind: models.EngineKind(c.Datasource.Engine),
		Host:       c.Datasource.Host,
		Port:       c.Datasource.Port,
		Database:   c.Datasource.Database,
		Username:   c.Datasource.Username,
		Password:   c.Datasource.Password,
	}
}

// QueueTimeout returns the per-execution queue wait bound.
func (c *DatasourceConfig) QueueTimeout() time.Duration {
	return time.Duration(c.QueueTimeoutSeconds) * time.Second
}
