package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "0 8 * * *", cfg.DigestCron)
	assert.Equal(t, 50, cfg.DigestBatchSize)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.SMTPEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://app.partnerhub.io, https://admin.partnerhub.io ,")
	t.Setenv("DIGEST_BATCH_SIZE", "25")
	t.Setenv("SMTP_HOST", "smtp.partnerhub.io")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 25, cfg.DigestBatchSize)
	assert.True(t, cfg.SMTPEnabled())
	assert.Equal(t, []string{"https://app.partnerhub.io", "https://admin.partnerhub.io"}, cfg.Origins())
}

func TestDevelopmentOrigins(t *testing.T) {
	cfg := &Config{Env: "development", AllowedOrigins: "https://ignored.example"}
	assert.Contains(t, cfg.Origins(), "http://localhost:3000")
	assert.NotContains(t, cfg.Origins(), "https://ignored.example")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresOriginsInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ALLOWED_ORIGINS", " , ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALLOWED_ORIGINS")
}
