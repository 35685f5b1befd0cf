package provider

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMissingAPIKey = errors.New("API key is required")

// KeyRule is the format a provider's API keys must follow.
type KeyRule struct {
	Prefix    string
	MinLength int
}

// ValidateAPIKey checks key against rule without contacting the provider.
func ValidateAPIKey(rule KeyRule, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrMissingAPIKey
	}
	if rule.Prefix != "" && !strings.HasPrefix(key, rule.Prefix) {
		return fmt.Errorf("invalid API key format: should start with %q", rule.Prefix)
	}
	if len(key) < rule.MinLength {
		return fmt.Errorf("API key is too short: want at least %d characters", rule.MinLength)
	}
	return nil
}
