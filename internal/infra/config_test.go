package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, "http://localhost:8000/api/v1", cfg.Backend.BaseURL)
	assert.Equal(t, "file", cfg.Session.Backend)
	assert.Equal(t, "backend", cfg.Engine.Executor)
	assert.False(t, cfg.Engine.ExclusiveAgents)
	assert.Equal(t, uint(3), cfg.Reliability.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Reliability.CBTimeout)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
backend:
  base_url: http://backend:8000/api/v1
engine:
  exclusive_agents: true
  executor: sandbox
session:
  backend: memory
`), 0o600))

	t.Setenv("SERVER_PORT", "9191")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "http://backend:8000/api/v1", cfg.Backend.BaseURL)
	assert.True(t, cfg.Engine.ExclusiveAgents)
	assert.Equal(t, "sandbox", cfg.Engine.Executor)
	assert.Equal(t, "memory", cfg.Session.Backend)
}

func TestLoadConfig_InvalidSessionBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  backend: cookie\n"), 0o600))

	_, err := LoadConfigFrom(path)
	assert.Error(t, err)
}

func TestLoadKeyResource_EnvWins(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_KEY_DATA", "pem-from-env")
	assert.Equal(t, []byte("pem-from-env"), loadKeyResource("/does/not/exist", "AUTH_PUBLIC_KEY_DATA"))
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = NewLogger(LoggerConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, ":8080", ServerConfig{Port: 8080}.Addr())
}
