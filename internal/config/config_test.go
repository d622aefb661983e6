package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/herd/pkg/catalog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "herd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "6.1.0", cfg.Distribution.Version)
	assert.Equal(t, ExecutorDryRun, cfg.Executor.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Heartbeat.Timeout)
	assert.Empty(t, cfg.RepoDefaults())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/herd
parallelism: 4
log:
  level: debug
  format: json
heartbeat:
  poll_interval: 2s
  timeout: 90s
repos:
  centos_base: http://mirror/centos
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/herd", cfg.DataDir)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Heartbeat.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.Heartbeat.Timeout)
	assert.Equal(t, 5660, cfg.Heartbeat.Port, "unset keys keep their defaults")
	assert.Equal(t, map[string]string{catalog.CentOSBaseRepo: "http://mirror/centos"}, cfg.RepoDefaults())
}

func TestLoadImages(t *testing.T) {
	path := writeConfig(t, `
images:
  - id: img-CentOS-7
    tags: [centos, herd-6.1.0]
  - id: img-ubuntu
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"img-CentOS-7": {"centos", "herd-6.1.0"},
		"img-ubuntu":   nil,
	}, cfg.ImageTags())
	assert.Empty(t, Default().ImageTags())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "parallelism: 4\n")
	t.Setenv("HERD_PARALLELISM", "16")
	t.Setenv("HERD_MONITOR_SCHEDULE", "*/5 * * * *")
	t.Setenv("HERD_EXECUTOR_MODE", "local")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Parallelism)
	assert.Equal(t, "*/5 * * * *", cfg.Monitor.Schedule)
	assert.Equal(t, ExecutorLocal, cfg.Executor.Mode)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Parallelism, cfg.Parallelism)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero parallelism", "parallelism: 0\n"},
		{"unknown executor", "executor:\n  mode: ssh\n"},
		{"unknown log format", "log:\n  format: xml\n"},
		{"image without id", "images:\n  - tags: [centos]\n"},
		{"duplicate image", "images:\n  - id: img-1\n  - id: img-1\n"},
		{"bad yaml", "parallelism: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}
