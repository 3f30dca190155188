package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/holdfast/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, config.DriverFile, cfg.StoreDriver)
	assert.Equal(t, 45*time.Second, cfg.LockTimeout)
	assert.Equal(t, 12*time.Hour, cfg.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.SendTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "holdfast.yaml", `
addr: ":9090"
api_key: secret
store_driver: redis
redis_addr: "cache:6379"
redis_db: 2
lock_timeout: 30s
idle_timeout: 1h
`)
	cfg, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, config.DriverRedis, cfg.StoreDriver)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 30*time.Second, cfg.LockTimeout)
	assert.Equal(t, time.Hour, cfg.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.TokenTTL, "unset keys keep their defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "holdfast.yaml", "addr: \":9090\"\nlock_timeout: 30s\n")
	t.Setenv("HOLDFAST_ADDR", ":7070")
	t.Setenv("HOLDFAST_LOCK_TIMEOUT", "10s")
	t.Setenv("HOLDFAST_STORE_DRIVER", "memory")

	cfg, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.LockTimeout)
	assert.Equal(t, config.DriverMemory, cfg.StoreDriver)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "HOLDFAST_API_KEY=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("HOLDFAST_API_KEY") })

	cfg, err := config.Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "addr: [unterminated\n")
	_, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	cfg.StoreDriver = "etcd"
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.StoreDir = ""
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.LockTimeout = 0
	assert.Error(t, cfg.Validate())
}
