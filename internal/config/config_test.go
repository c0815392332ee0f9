package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "SERVER_ADDR", "LOG_LEVEL", "JWT_SECRET", "JWT_ACCESS_TTL",
		"JWT_REFRESH_TTL", "GOOGLE_CLIENT_ID", "CORS_ALLOWED_ORIGINS", "PGHOST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "2h", cfg.Auth.JWTAccessTTL)
	assert.Equal(t, "720h", cfg.Auth.JWTRefreshTTL)
	assert.Equal(t, "shelfmark", cfg.Auth.JWTIssuer)
	assert.Equal(t, "https://accounts.google.com", cfg.OAuth.GoogleIssuerURL)
	assert.False(t, cfg.OAuth.Enabled())
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
auth:
  jwtSecret: from-file
  jwtAccessTtl: 30m
oauth:
  googleClientId: client-from-file
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "30m", cfg.Auth.JWTAccessTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.OAuth.Enabled())
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}
