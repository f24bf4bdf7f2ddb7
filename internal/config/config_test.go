package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/config"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
admin_access: true
session_max_age: 2h
users:
  - name: nandy
    password: nandy-pass
  - name: root
    password: root-pass
    admin: true
spawner:
  kind: inprocess
  debug: true
  env:
    LANG: C
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	c, err := config.Load(path)
	require.NoError(t, err)

	require.True(t, c.GetAdminAccess())
	require.False(t, c.GetShutdownOnLogout())
	require.Equal(t, 2*time.Hour, c.GetSessionMaxAge())
	require.Len(t, c.GetUsers(), 2)
	require.True(t, c.GetUsers()[1].Admin)

	spec := c.GetSpawner()
	require.Equal(t, "inprocess", spec.Kind)
	require.True(t, spec.Debug)
	require.Equal(t, "C", spec.Env["LANG"])
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	t.Setenv("HUB_ADMIN_ACCESS", "false")
	t.Setenv("HUB_SESSION_MAX_AGE", "30m")
	t.Setenv("HUB_SPAWNER", "local")

	c, err := config.Load(path)
	require.NoError(t, err)
	require.False(t, c.GetAdminAccess())
	require.Equal(t, 30*time.Minute, c.GetSessionMaxAge())
	require.Equal(t, "local", c.GetSpawner().Kind)
}

func TestDefaults(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HUB_SPAWN_TIMEOUT", "not-a-duration")

	c := config.New()
	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, "http://localhost:9000", c.GetBaseURL())
	require.Equal(t, 60*time.Second, c.GetSpawnTimeout())
	require.Equal(t, "local", c.GetSpawner().Kind)
	require.Empty(t, c.GetUsers())
	require.Len(t, c.GetTokenSecret(), 32)
	require.Equal(t, c.GetTokenSecret(), c.GetTokenSecret())
}

func TestParseFileErrors(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		_, err := config.ParseFile([]byte("spawn_timeout: soon\n"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid duration")
	})

	t.Run("duplicate user", func(t *testing.T) {
		_, err := config.ParseFile([]byte("users:\n  - name: a\n  - name: a\n"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "duplicate user")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
