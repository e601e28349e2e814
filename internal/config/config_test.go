package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 0.01, cfg.Reconcile.AmountTolerance)
	assert.Equal(t, 7, cfg.Reconcile.DateToleranceDays)
	assert.Equal(t, 10*time.Minute, cfg.Redis.LockTTL)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "billflow.yaml")
	content := `
server:
  port: "9000"
redis:
  addr: ${TEST_REDIS_HOST}:6379
  lock_ttl: 2m
reconcile:
  date_tolerance_days: 3
  timeout: 45s
openai:
  model: gpt-4o
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TEST_REDIS_HOST", "cache")
	t.Setenv("PORT", "")
	t.Setenv("OPENAI_MODEL", "gpt-4.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Redis.LockTTL)
	assert.Equal(t, 3, cfg.Reconcile.DateToleranceDays)
	assert.Equal(t, 45*time.Second, cfg.Reconcile.Timeout)
	assert.Equal(t, "gpt-4.1", cfg.OpenAI.Model, "env overrides file")
	assert.Equal(t, 0.01, cfg.Reconcile.AmountTolerance, "unset keys keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_BOOL", "yes")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_FLOAT", "0.05")

	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_BAD_INT", 1))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_UNSET_BOOL", true))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", 0))
	assert.Equal(t, 0.05, getEnvFloat("TEST_FLOAT", 0.01))
	assert.Equal(t, "fallback", getEnv("TEST_UNSET_STRING", "fallback"))
}

func TestDatabaseConfig_ConnString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.ConnString())
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.URL())

	d.DSN = "postgres://other"
	assert.Equal(t, "postgres://other", d.ConnString())
}
