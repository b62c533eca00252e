package config

import (
	"encoding/base64"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the orchestrator configuration.
// Environment variables are parsed from the ORCHESTRATOR_ prefix.
type Config struct {
	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Upstream AI service
	UpstreamURL string `envconfig:"UPSTREAM_URL" default:"http://localhost:8000"`

	// Persistence
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/orchestrator.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// File trees
	AssetsDir    string `envconfig:"ASSETS_DIR" default:"assets"`
	GeneratedDir string `envconfig:"GENERATED_DIR" default:"generated"`

	// EncryptionKey is the base64-encoded 32-byte key used to seal stored
	// provider keys. Required whenever users store their own keys.
	EncryptionKey string `envconfig:"ENCRYPTION_KEY" default:""`

	// Administrator identity and process-wide provider keys, used for
	// principals with an approved key-access request.
	AdminUserID    string `envconfig:"ADMIN_USER_ID" default:"admin"`
	AdminGeminiKey string `envconfig:"ADMIN_GEMINI_KEY" default:""`
	AdminGroqKey   string `envconfig:"ADMIN_GROQ_KEY" default:""`

	// Health gating
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"3"`
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`

	// Per-operation proxy deadlines (seconds)
	ChatTimeoutSeconds       int `envconfig:"CHAT_TIMEOUT_SECONDS" default:"120"`
	AnalysisTimeoutSeconds   int `envconfig:"ANALYSIS_TIMEOUT_SECONDS" default:"180"`
	GenerationTimeoutSeconds int `envconfig:"GENERATION_TIMEOUT_SECONDS" default:"300"`
	RefineTimeoutSeconds     int `envconfig:"REFINE_TIMEOUT_SECONDS" default:"30"`
}

// ResolveDefaults validates driver selection and key material.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("ORCHESTRATOR_POSTGRES_DSN is required when DB_DRIVER=postgres")
	}
	if c.UpstreamURL == "" {
		return fmt.Errorf("ORCHESTRATOR_UPSTREAM_URL must not be empty")
	}
	if c.EncryptionKey != "" {
		raw, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("ORCHESTRATOR_ENCRYPTION_KEY is not valid base64: %w", err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("ORCHESTRATOR_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(raw))
		}
	}
	return nil
}

// EncryptionKeyBytes returns the decoded sealing key, or nil when unset.
func (c *Config) EncryptionKeyBytes() []byte {
	if c.EncryptionKey == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil
	}
	return raw
}

// New creates a Config by parsing ORCHESTRATOR_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("ORCHESTRATOR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Str("upstream_url", cfg.UpstreamURL).
		Str("assets_dir", cfg.AssetsDir).
		Str("generated_dir", cfg.GeneratedDir).
		Bool("encryption_key_present", cfg.EncryptionKey != "").
		Bool("admin_gemini_key_present", cfg.AdminGeminiKey != "").
		Bool("admin_groq_key_present", cfg.AdminGroqKey != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
