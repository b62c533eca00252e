package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "http://localhost:8000", cfg.UpstreamURL)
	assert.Equal(t, "admin", cfg.AdminUserID)
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("ORCHESTRATOR_HTTP_PORT", "9090")
	t.Setenv("ORCHESTRATOR_UPSTREAM_URL", "http://ai:8000")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "http://ai:8000", cfg.UpstreamURL)
}

func TestResolveDefaults_Validation(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		cfg := &Config{DBDriver: "mongodb", UpstreamURL: "http://x"}
		assert.Error(t, cfg.ResolveDefaults())
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		cfg := &Config{DBDriver: "postgres", UpstreamURL: "http://x"}
		assert.Error(t, cfg.ResolveDefaults())
	})

	t.Run("encryption key must be 32 bytes", func(t *testing.T) {
		cfg := &Config{DBDriver: "sqlite", UpstreamURL: "http://x",
			EncryptionKey: base64.StdEncoding.EncodeToString([]byte("short"))}
		assert.Error(t, cfg.ResolveDefaults())

		cfg.EncryptionKey = base64.StdEncoding.EncodeToString(make([]byte, 32))
		assert.NoError(t, cfg.ResolveDefaults())
		assert.Len(t, cfg.EncryptionKeyBytes(), 32)
	})

	t.Run("bad base64 rejected", func(t *testing.T) {
		cfg := &Config{DBDriver: "sqlite", UpstreamURL: "http://x", EncryptionKey: "%%%"}
		assert.Error(t, cfg.ResolveDefaults())
	})
}
