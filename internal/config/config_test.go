package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonctl/daemonctl/pkg/types"
)

func testPaths(t *testing.T) *Paths {
	t.Helper()
	return NewPaths(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	paths := testPaths(t)
	cfg, err := Load(paths, "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Unattended)
	assert.NotNil(t, cfg.Provider)
}

func TestLoadGlobalConfigFile(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.MkdirAll(paths.Root, 0o755))
	require.NoError(t, os.WriteFile(paths.ConfigFile(), []byte(
		"logLevel: debug\nunattended: true\n",
	), 0o644))

	cfg, err := Load(paths, "")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Unattended)
}

func TestProjectOverrideWinsOverGlobal(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.MkdirAll(paths.Root, 0o755))
	require.NoError(t, os.WriteFile(paths.ConfigFile(), []byte("logLevel: debug\n"), 0o644))

	projectDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, ".daemonctl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".daemonctl", "config.yml"), []byte(
		"logLevel: trace\n",
	), 0o644))

	cfg, err := Load(paths, projectDir)
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.LogLevel)
}

func TestProviderMapsAreMerged(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.MkdirAll(paths.Root, 0o755))
	require.NoError(t, os.WriteFile(paths.ConfigFile(), []byte(
		"provider:\n  anthropic:\n    baseURL: https://global.example.com\n",
	), 0o644))

	projectDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, ".daemonctl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".daemonctl", "config.yml"), []byte(
		"provider:\n  openai:\n    baseURL: https://openai.example.com\n",
	), 0o644))

	cfg, err := Load(paths, projectDir)
	require.NoError(t, err)

	assert.Equal(t, "https://global.example.com", cfg.Provider["anthropic"].BaseURL)
	assert.Equal(t, "https://openai.example.com", cfg.Provider["openai"].BaseURL)
}

func TestEnvVarOverridesProviderAPIKey(t *testing.T) {
	paths := testPaths(t)
	os.Setenv("ANTHROPIC_API_KEY", "env-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	cfg, err := Load(paths, "")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Provider["anthropic"].APIKey)
}

func TestEnvVarDoesNotOverrideFileAPIKey(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.MkdirAll(paths.Root, 0o755))
	require.NoError(t, os.WriteFile(paths.ConfigFile(), []byte(
		"provider:\n  anthropic:\n    apiKey: file-key\n",
	), 0o644))

	os.Setenv("ANTHROPIC_API_KEY", "env-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	cfg, err := Load(paths, "")
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Provider["anthropic"].APIKey, "a key already set by a file source wins over the environment")
}

func TestDaemonctlLogLevelEnvOverride(t *testing.T) {
	paths := testPaths(t)
	os.Setenv("DAEMONCTL_LOG_LEVEL", "warn")
	defer os.Unsetenv("DAEMONCTL_LOG_LEVEL")

	cfg, err := Load(paths, "")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := &types.Config{LogLevel: "debug"}
	require.NoError(t, Save(cfg, path))

	paths := testPaths(t)
	paths.Root = filepath.Dir(path)
	loaded, err := Load(paths, "")
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.LogLevel)
}
