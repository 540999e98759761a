package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for crm-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (database password) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// CRM pipeline tunables
	CRM CRMConfig `yaml:"crm"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"crm"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"crm_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// CRMConfig holds lead pipeline settings.
type CRMConfig struct {
	// StaleAfterDays is how long a lead can go without activity before it
	// counts as stale.
	StaleAfterDays int `yaml:"stale_after_days" env:"CRM_STALE_AFTER_DAYS" env-default:"7"`
	// StaleLeadLimit caps the stale-lead list returned by dashboard and stats.
	StaleLeadLimit int `yaml:"stale_lead_limit" env:"CRM_STALE_LEAD_LIMIT" env-default:"10"`
	// DefaultPageSize is the page size when the caller does not specify one.
	DefaultPageSize int `yaml:"default_page_size" env:"CRM_DEFAULT_PAGE_SIZE" env-default:"20"`
	// MaxPageSize caps the per-page size callers may request.
	MaxPageSize int `yaml:"max_page_size" env:"CRM_MAX_PAGE_SIZE" env-default:"100"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. A missing config.yaml is fine; env vars and defaults apply.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateCRM(); err != nil {
		return nil, fmt.Errorf("invalid CRM configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// validateCRM rejects tunables that would break pagination or staleness math.
func (c *Config) validateCRM() error {
	if c.CRM.StaleAfterDays <= 0 {
		return fmt.Errorf("stale_after_days must be positive, got %d", c.CRM.StaleAfterDays)
	}
	if c.CRM.StaleLeadLimit <= 0 {
		return fmt.Errorf("stale_lead_limit must be positive, got %d", c.CRM.StaleLeadLimit)
	}
	if c.CRM.DefaultPageSize <= 0 || c.CRM.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if c.CRM.DefaultPageSize > c.CRM.MaxPageSize {
		return fmt.Errorf("default_page_size %d exceeds max_page_size %d",
			c.CRM.DefaultPageSize, c.CRM.MaxPageSize)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
