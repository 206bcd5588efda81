package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jmxbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ModeSDK, cfg.Runtime.Mode)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: 127.0.0.1:9100
runtime:
  mode: cli
  serialize: true
fetch:
  tool: wget
  timeout: 3s
backoff:
  initial: 1s
  max_attempts: 4
targets:
  - name: namenode
    url: http://localhost:9870/jmx
    interval: 30s
    fallback: true
    beans: [FSNamesystem]
  - name: datanode
    url: http://localhost:9864/jmx
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.Listen)
	assert.Equal(t, ModeCLI, cfg.Runtime.Mode)
	assert.True(t, cfg.Runtime.Serialize)
	assert.Equal(t, "docker", cfg.Runtime.DockerBin)
	assert.Equal(t, "wget", cfg.Fetch.Tool)
	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Fetch.HostTimeout)
	assert.Equal(t, time.Second, cfg.Backoff.Initial)
	assert.Equal(t, 5*time.Minute, cfg.Backoff.Max)
	assert.Equal(t, 2.0, cfg.Backoff.Multiplier)
	assert.Equal(t, 4, cfg.Backoff.MaxAttempts)

	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, 30*time.Second, cfg.Targets[0].Interval)
	assert.Equal(t, 3*time.Second, cfg.Targets[0].Timeout, "target timeout defaults to fetch.timeout")
	assert.True(t, cfg.Targets[0].Fallback)
	assert.Equal(t, []string{"FSNamesystem"}, cfg.Targets[0].Beans)
	assert.Equal(t, 15*time.Second, cfg.Targets[1].Interval)
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, `
runtime:
  mode: podman
fetch:
  tool: httpie
targets:
  - name: a
    url: ftp://localhost/jmx
  - name: a
    url: http://localhost:1/jmx
  - url: http://localhost:2/jmx
`)
	_, err := Load(path)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `runtime.mode "podman"`)
	assert.Contains(t, msg, `fetch.tool "httpie"`)
	assert.Contains(t, msg, "targets[0]")
	assert.Contains(t, msg, `duplicate name "a"`)
	assert.Contains(t, msg, "targets[2]: name is required")
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "listen: [unterminated"))
	assert.ErrorContains(t, err, "parsing config")
}
