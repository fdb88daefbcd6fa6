package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cybertodo.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "data_dir: /var/lib/todo\n"))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/todo", cfg.DataDir)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "cyberpunk-todos", cfg.Storage.Key)
	assert.Equal(t, "medium", cfg.Defaults.Priority)
	assert.Equal(t, "general", cfg.Defaults.Category)
	assert.True(t, cfg.MatchCategory())
	assert.Equal(t, ":42069", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
data_dir: state
storage:
  backend: memory
  key: neon
defaults:
  priority: high
  category: inbox
search:
  match_category: false
server:
  addr: "127.0.0.1:9000"
log:
  format: text
activity:
  limit: 50
`))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "neon", cfg.Storage.Key)
	assert.Equal(t, "high", cfg.Defaults.Priority)
	assert.Equal(t, "inbox", cfg.Defaults.Category)
	assert.False(t, cfg.MatchCategory())
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 50, cfg.Activity.Limit)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "storage: [unclosed"))
	assert.Error(t, err)
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "s3"
	cfg.Defaults.Priority = "urgent"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
	assert.Contains(t, err.Error(), "defaults.priority")
	assert.Contains(t, err.Error(), "log.format")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TODO_DATA_DIR", "/tmp/todo")
	t.Setenv("TODO_STORAGE_BACKEND", "MEMORY")
	t.Setenv("TODO_STORAGE_KEY", "other")
	t.Setenv("TODO_ADDR", ":8080")
	t.Setenv("TODO_DEFAULT_PRIORITY", "Low")
	t.Setenv("TODO_DEFAULT_CATEGORY", "chores")
	t.Setenv("TODO_LOG_FORMAT", "text")
	t.Setenv("TODO_SEARCH_CATEGORY", "false")
	t.Setenv("TODO_ACTIVITY_LIMIT", "not-a-number")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "/tmp/todo", cfg.DataDir)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "other", cfg.Storage.Key)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "low", cfg.Defaults.Priority)
	assert.Equal(t, "chores", cfg.Defaults.Category)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.MatchCategory())
	assert.Equal(t, 1000, cfg.Activity.Limit)
}
