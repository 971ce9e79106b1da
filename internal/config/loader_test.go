package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default(), cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var written Config
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, ":8080", written.Addr)
	assert.Equal(t, DriverSQLite, written.DBDriver)
}

func TestLoadPrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\nlog_level: debug\nshutdown_timeout: 10s\nredis_db: 2\n"), 0o600))

	t.Setenv("MIGCHAT_LOG_LEVEL", "error")
	t.Setenv("MIGCHAT_NATS_URL", "nats://127.0.0.1:4222")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr, "file beats default")
	assert.Equal(t, "error", cfg.LogLevel, "env beats file")
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)

	cfg.UpdateFrom(Config{Addr: ":7000"})
	assert.Equal(t, ":7000", cfg.Addr, "caller override beats env")
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MIGCHAT_JWT_SECRET=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("MIGCHAT_JWT_SECRET") })

	cfg, _, err := Load(nil, filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.JWTSecret)

	// Secrets never land in the generated file.
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "from-dotenv")
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	bad := Default()
	bad.DBDriver = "mysql"
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.DBDSN = ""
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.ClientQueueSize = 0
	assert.Error(t, bad.Validate())
}
