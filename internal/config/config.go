// Package config reads process configuration from the environment and user
// settings from settings.yaml in the data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"MDCLIP_ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"MDCLIP_LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"MDCLIP_LOG_FILE" default:""`

	DataDir     string `envconfig:"MDCLIP_DATA_DIR" default:""`
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY" default:""`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY" default:""`
	CustomAPIKey     string `envconfig:"OPENAI_API_KEY" default:""`
	AnthropicBaseURL string `envconfig:"MDCLIP_ANTHROPIC_BASE_URL" default:""`
	GeminiBaseURL    string `envconfig:"MDCLIP_GEMINI_BASE_URL" default:""`
	CustomBaseURL    string `envconfig:"OPENAI_BASE_URL" default:""`

	HTTPTimeout time.Duration `envconfig:"MDCLIP_HTTP_TIMEOUT" default:"90s"`
	UserAgent   string        `envconfig:"MDCLIP_USER_AGENT" default:"mdclip/1.0"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("MDCLIP_DATA_DIR is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("MDCLIP_HTTP_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		return fmt.Errorf("MDCLIP_LOG_LEVEL is required")
	}
	return nil
}

// SettingsPath is where the user settings file lives.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, settingsFileName)
}

// LockDir holds the per-article translation lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.DataDir, "locks")
}

// APIKeyOverride returns the environment key for providerName, if any.
func (c *Config) APIKeyOverride(providerName string) string {
	switch strings.ToLower(strings.TrimSpace(providerName)) {
	case "anthropic":
		return strings.TrimSpace(c.AnthropicAPIKey)
	case "gemini":
		return strings.TrimSpace(c.GeminiAPIKey)
	case "custom":
		return strings.TrimSpace(c.CustomAPIKey)
	}
	return ""
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for data dir (set MDCLIP_DATA_DIR): %w", err)
	}
	return filepath.Join(home, ".mdclip"), nil
}
