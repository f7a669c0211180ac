package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "env: local\n")

	cfg, err := Load(path, "test")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.BindAddr)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, "postgres", cfg.Datasource.Engine)
	assert.Equal(t, 100, cfg.Pipeline.DefaultLimit)
	assert.False(t, cfg.Model.IsAvailable())
}

func TestLoad_YAMLValues(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
datasource:
  engine: mysql
  host: db.internal
  port: 3306
  database: depot
  username: reader
model:
  provider: openai
  endpoint: http://localhost:8000/v1
  name: local-model
pipeline:
  default_limit: 250
`)

	cfg, err := Load(path, "test")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "mysql", cfg.Datasource.Engine)
	assert.Equal(t, 250, cfg.Pipeline.DefaultLimit)
	assert.True(t, cfg.Model.IsAvailable())

	profile := cfg.Profile()
	assert.Equal(t, models.EngineMySQL, profile.EngineKind)
	assert.Equal(t, "db.internal", profile.Host)
	assert.Equal(t, 3306, profile.Port)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
datasource:
  engine: postgres
  host: from-yaml
`)
	t.Setenv("DATASOURCE_HOST", "from-env")
	t.Setenv("DATASOURCE_PASSWORD", "s3cret")

	cfg, err := Load(path, "test")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Datasource.Host)
	assert.Equal(t, "s3cret", cfg.Datasource.Password)
}

func TestLoad_RejectsUnknownEngine(t *testing.T) {
	path := writeConfig(t, `
datasource:
  engine: dbase
`)
	_, err := Load(path, "test")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown datasource engine")
}

func TestLoad_RejectsOversizedDefaultLimit(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  default_limit: 100000
`)
	_, err := Load(path, "test")
	require.Error(t, err)
	assert.ErrorContains(t, err, "default_limit")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "test")
	assert.Error(t, err)
}

func TestModelConfig_AnthropicNeedsKey(t *testing.T) {
	cfg := ModelConfig{Provider: "anthropic", Name: "some-model"}
	assert.False(t, cfg.IsAvailable())

	cfg.APIKey = "key"
	assert.True(t, cfg.IsAvailable())
}
