package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_DB_URL", "postgres://svc:secret@db:5432/security")

	path := writeConfig(t, `
env: production
port: 9090
database_url: ${TEST_DB_URL}
logger:
  level: debug
  format: console
geolocation:
  base_url: http://ip-api.com
  timeout: 3s
  cache_ttl: 30m
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://svc:secret@db:5432/security", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 3*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Geolocation.CacheTTL)
}

func TestLoadConfigDefaultsPort(t *testing.T) {
	path := writeConfig(t, "env: development\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecret(name string) (string, error) {
	return f[name], nil
}

func TestResolveSecretsOverridesInlineValues(t *testing.T) {
	cfg := &Config{
		DatabaseURL: "inline",
		Secrets: SecretsConfig{
			Enabled:           true,
			DatabaseURL:       "prod/db-url",
			GeolocationAPIKey: "prod/geo-key",
			RedisPassword:     "prod/redis-pass",
		},
	}

	err := cfg.ResolveSecrets(fakeSecrets{
		"prod/db-url":     "postgres://resolved",
		"prod/geo-key":    "key-123",
		"prod/redis-pass": "hunter2",
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://resolved", cfg.DatabaseURL)
	assert.Equal(t, "key-123", cfg.Geolocation.APIKey)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
}
