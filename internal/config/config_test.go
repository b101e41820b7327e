package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("STOREFRONT_CONFIG", "")
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("SEED_ADMIN_PASSWORD", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.SeedAdminPassword != "" {
		t.Fatalf("expected empty SEED_ADMIN_PASSWORD when unset, got %q", cfg.SeedAdminPassword)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STOREFRONT_CONFIG", "")
	t.Setenv("PORT", "")
	t.Setenv("LOW_STOCK_THRESHOLD", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 50, cfg.LowStockThreshold)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
	assert.Equal(t, 6, cfg.RecommendationLimit)
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	err := os.WriteFile(path, []byte(`
port: "9090"
allowed_origin: https://metro.example
low_stock_threshold: 20
redis_addr: localhost:6379
`), 0o600)
	require.NoError(t, err)

	t.Setenv("STOREFRONT_CONFIG", path)
	t.Setenv("PORT", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOW_STOCK_THRESHOLD", "15")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://metro.example", cfg.AllowedOrigin)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 15, cfg.LowStockThreshold)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("STOREFRONT_CONFIG", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "zero")
	t.Setenv("RECOMMENDATION_LIMIT", "0")

	cfg := Load()
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
	assert.Equal(t, 6, cfg.RecommendationLimit)
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
