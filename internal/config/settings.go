package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const settingsFileName = "settings.yaml"

// Settings are the user-editable options, equivalent to the options page of
// the browser extension.
type Settings struct {
	EnableTranslation bool          `yaml:"enable_translation"`
	Provider          string        `yaml:"provider"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	PromptTemplate    string        `yaml:"prompt_template"`
	PreserveOriginal  bool          `yaml:"preserve_original"`
	IncludeMetadata   bool          `yaml:"include_metadata"`
	AutoTranslate     bool          `yaml:"auto_translate"`
	MinuteLimit       int           `yaml:"minute_limit"`
	HourLimit         int           `yaml:"hour_limit"`
	SectionDelay      time.Duration `yaml:"section_delay"`
	CustomBaseURL     string        `yaml:"custom_base_url"`
	GlossaryFile      string        `yaml:"glossary_file"`
}

func DefaultSettings() Settings {
	return Settings{
		EnableTranslation: false,
		Provider:          "anthropic",
		PreserveOriginal:  true,
		IncludeMetadata:   true,
		AutoTranslate:     false,
		MinuteLimit:       10,
		HourLimit:         50,
		SectionDelay:      100 * time.Millisecond,
	}
}

// LoadSettings reads path, filling unset fields with defaults. A missing file
// yields the defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file %s: %w", path, err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return settings, nil
	}
	if err := yaml.Unmarshal(content, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings file %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings writes settings atomically.
func SaveSettings(path string, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	payload, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o600); err != nil {
		return fmt.Errorf("write settings temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace settings file %s: %w", path, err)
	}
	return nil
}

func (s Settings) Validate() error {
	if s.MinuteLimit < 1 {
		return fmt.Errorf("minute_limit must be >= 1")
	}
	if s.HourLimit < s.MinuteLimit {
		return fmt.Errorf("hour_limit (%d) cannot be lower than minute_limit (%d)", s.HourLimit, s.MinuteLimit)
	}
	if s.SectionDelay < 0 {
		return fmt.Errorf("section_delay must be >= 0")
	}
	if strings.TrimSpace(s.Provider) == "" {
		return fmt.Errorf("provider is required")
	}
	return nil
}

// ResolvedAPIKey prefers the environment override for the active provider.
func (s Settings) ResolvedAPIKey(cfg *Config) string {
	if cfg != nil {
		if key := cfg.APIKeyOverride(s.Provider); key != "" {
			return key
		}
	}
	return strings.TrimSpace(s.APIKey)
}

// Set assigns one setting from its yaml key and a string value.
func (s *Settings) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	switch key {
	case "enable_translation":
		return setBool(&s.EnableTranslation, key, value)
	case "preserve_original":
		return setBool(&s.PreserveOriginal, key, value)
	case "include_metadata":
		return setBool(&s.IncludeMetadata, key, value)
	case "auto_translate":
		return setBool(&s.AutoTranslate, key, value)
	case "provider":
		s.Provider = strings.ToLower(strings.TrimSpace(value))
	case "api_key":
		s.APIKey = strings.TrimSpace(value)
	case "model":
		s.Model = strings.TrimSpace(value)
	case "prompt_template":
		s.PromptTemplate = value
	case "custom_base_url":
		s.CustomBaseURL = strings.TrimSpace(value)
	case "glossary_file":
		s.GlossaryFile = strings.TrimSpace(value)
	case "minute_limit":
		return setInt(&s.MinuteLimit, key, value)
	case "hour_limit":
		return setInt(&s.HourLimit, key, value)
	case "section_delay":
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("section_delay: %w", err)
		}
		s.SectionDelay = d
	default:
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(SettingKeys(), ", "))
	}
	return nil
}

// SettingKeys lists the keys accepted by Set.
func SettingKeys() []string {
	keys := []string{
		"enable_translation", "provider", "api_key", "model", "prompt_template",
		"preserve_original", "include_metadata", "auto_translate",
		"minute_limit", "hour_limit", "section_delay", "custom_base_url", "glossary_file",
	}
	sort.Strings(keys)
	return keys
}

// Redacted returns a copy safe to print.
func (s Settings) Redacted() Settings {
	out := s
	if key := strings.TrimSpace(s.APIKey); key != "" {
		if len(key) > 8 {
			out.APIKey = key[:4] + strings.Repeat("*", 8) + key[len(key)-4:]
		} else {
			out.APIKey = strings.Repeat("*", len(key))
		}
	}
	return out
}

func setBool(dst *bool, key, value string) error {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be true or false", key)
	}
	*dst = parsed
	return nil
}

func setInt(dst *int, key, value string) error {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be an integer", key)
	}
	*dst = parsed
	return nil
}
