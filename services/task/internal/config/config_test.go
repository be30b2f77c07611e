package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8082, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:8081", cfg.IdentityServiceURL)
	assert.Equal(t, "5s", cfg.DirectoryTimeout.String())
}

func TestLoad_RejectsDefaultSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TASK_HTTP_PORT", "9292")
	t.Setenv("IDENTITY_SERVICE_URL", "http://identity:8081")
	t.Setenv("POSTGRES_DB", "task_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9292, cfg.HTTPPort)
	assert.Equal(t, "http://identity:8081", cfg.IdentityServiceURL)
	assert.Equal(t, "task_test", cfg.PostgresConfig().DBName)
}
