package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMasterKeyEnv is read when vault.master_key is not set.
const DefaultMasterKeyEnv = "LOG_ENCRYPTION_KEY"

// Config holds all promptgate configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Vault    VaultConfig    `yaml:"vault"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Session  SessionConfig  `yaml:"session"`
	Server   ServerConfig   `yaml:"server"`
	Ledger   LedgerConfig   `yaml:"ledger"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// StorageConfig selects the SQL backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the blacklist snapshot cache when Addr is set.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	BlacklistTTL time.Duration `yaml:"blacklist_ttl"`
}

// VaultConfig locates the base64 master key.
type VaultConfig struct {
	MasterKey    string `yaml:"master_key"`
	MasterKeyEnv string `yaml:"master_key_env"`
}

// Key returns the configured master key, falling back to the environment.
func (v VaultConfig) Key() string {
	if v.MasterKey != "" {
		return v.MasterKey
	}
	env := v.MasterKeyEnv
	if env == "" {
		env = DefaultMasterKeyEnv
	}
	return os.Getenv(env)
}

// UpstreamConfig defines the single LLM provider.
type UpstreamConfig struct {
	Provider     string        `yaml:"provider"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PipelineConfig holds request-handling policy switches.
type PipelineConfig struct {
	LogFailedAttempts bool              `yaml:"log_failed_attempts"`
	Credentials       CredentialsConfig `yaml:"credentials"`
	Explain           ExplainConfig     `yaml:"explain"`
}

// CredentialsConfig controls provider credential lookup.
type CredentialsConfig struct {
	SharedFallback bool `yaml:"shared_fallback"`
}

// ExplainConfig controls explanations for blocked prompts.
type ExplainConfig struct {
	Enabled                 bool `yaml:"enabled"`
	SkipOnCredentialFailure bool `yaml:"skip_on_credential_failure"`
}

// SessionConfig verifies host session tokens on the wire.
type SessionConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	IncludeAnalysis bool     `yaml:"include_analysis"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// LedgerConfig controls audit retention. Zero keeps rows forever.
type LedgerConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "promptgate.db",
		},
		Redis: RedisConfig{
			BlacklistTTL: 30 * time.Second,
		},
		Vault: VaultConfig{
			MasterKeyEnv: DefaultMasterKeyEnv,
		},
		Upstream: UpstreamConfig{
			Provider:     "openai",
			BaseURL:      "https://api.openai.com",
			DefaultModel: "gpt-4o-mini",
			Timeout:      20 * time.Second,
		},
		Pipeline: PipelineConfig{
			Credentials: CredentialsConfig{SharedFallback: true},
			Explain: ExplainConfig{
				Enabled:                 true,
				SkipOnCredentialFailure: true,
			},
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream.timeout must not be negative")
	}
	if c.Ledger.RetentionDays < 0 {
		return fmt.Errorf("ledger.retention_days must not be negative")
	}
	return nil
}
