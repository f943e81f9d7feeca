package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestLoadDefaults(t *testing.T) {
	keyring.MockInit()
	t.Chdir(t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		// an explicit missing file is a read error, not ConfigFileNotFound
		t.Fatalf("expected error for explicit missing config file, got %+v", cfg)
	}

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":5007", cfg.Server.ListenAddr)
	assert.Equal(t, 1, cfg.Expansion.Depth)
	assert.Equal(t, 20, cfg.Analytics.MaxIterations)
	assert.InDelta(t, 0.85, cfg.Analytics.DampingFactor, 1e-9)
	assert.Equal(t, "papersGraph", cfg.Analytics.ProjectionName)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	keyring.MockInit()
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
neo4j:
  uri: bolt://graph:7687
  user: crawler
expansion:
  depth: 2
provider:
  page_size: 50
  timeout: 5s
`), 0644))

	t.Setenv("NEO4J_PWD", "s3cret")
	t.Setenv("SEMANTIC_SCHOLAR_API_KEY", "env-key-123456")
	t.Setenv("PAPERWALK_EXPANSION_CONCURRENCY", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "crawler", cfg.Neo4j.User)
	assert.Equal(t, "s3cret", cfg.Neo4j.Password)
	assert.Equal(t, 2, cfg.Expansion.Depth)
	assert.Equal(t, 8, cfg.Expansion.Concurrency)
	assert.Equal(t, 50, cfg.Provider.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "env-key-123456", cfg.Provider.APIKey)
	// untouched keys keep defaults
	assert.Equal(t, 3, cfg.Provider.MaxAttempts)
}

func TestNeo4jPasswordPrefersLongName(t *testing.T) {
	cfg := Default()
	t.Setenv("NEO4J_PASSWORD", "long")
	t.Setenv("NEO4J_PWD", "short")
	applyEnvOverrides(cfg)
	assert.Equal(t, "long", cfg.Neo4j.Password)
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Neo4j.Password = "hunter2"
	cfg.Provider.APIKey = "abcd1234567890wxyz"
	cfg.Storage.PostgresDSN = "postgres://runs:pw@db:5432/runs"

	out := cfg.Redacted()
	assert.Equal(t, "***", out.Neo4j.Password)
	assert.Equal(t, "abcd...wxyz", out.Provider.APIKey)
	assert.Equal(t, "postgres://runs:***@db:5432/runs", out.Storage.PostgresDSN)
	// receiver untouched
	assert.Equal(t, "hunter2", cfg.Neo4j.Password)
}

func TestSaveOmitsSecrets(t *testing.T) {
	keyring.MockInit()
	cfg := Default()
	cfg.Neo4j.Password = "hunter2"
	cfg.Expansion.Depth = 3

	path := filepath.Join(t.TempDir(), "out", "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	t.Chdir(t.TempDir())
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Expansion.Depth)
}
