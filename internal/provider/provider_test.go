package provider

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBuildPromptSubstitutesFirstPlaceholder(t *testing.T) {
	t.Parallel()

	got := BuildPrompt("A {content} B {content}", "x")
	if got != "A x B {content}" {
		t.Fatalf("BuildPrompt() = %q, want %q", got, "A x B {content}")
	}
}

func TestBuildPromptFallsBackToDefault(t *testing.T) {
	t.Parallel()

	for _, template := range []string{"", "no placeholder here"} {
		got := BuildPrompt(template, "SECTION")
		if !strings.HasSuffix(got, "SECTION") {
			t.Fatalf("BuildPrompt(%q) = %q, want default prompt ending in text", template, got)
		}
		if !strings.Contains(got, "日本語に翻訳") {
			t.Fatalf("BuildPrompt(%q) did not use the default prompt", template)
		}
	}
}

func TestValidateAPIKey(t *testing.T) {
	t.Parallel()

	anthropic := NewAnthropic("", nil).KeyRule()
	gemini := NewGemini("", nil).KeyRule()
	custom := NewCustom("", nil).KeyRule()

	tests := []struct {
		name    string
		rule    KeyRule
		key     string
		wantErr string
	}{
		{name: "anthropic ok", rule: anthropic, key: testAnthropicKey},
		{name: "anthropic empty", rule: anthropic, key: "  ", wantErr: "required"},
		{name: "anthropic prefix", rule: anthropic, key: "sk-" + strings.Repeat("a", 40), wantErr: "sk-ant-"},
		{name: "anthropic short", rule: anthropic, key: "sk-ant-abc", wantErr: "too short"},
		{name: "gemini ok", rule: gemini, key: testGeminiKey},
		{name: "gemini prefix", rule: gemini, key: strings.Repeat("b", 40), wantErr: "AIza"},
		{name: "custom ok", rule: custom, key: "12345678"},
		{name: "custom short", rule: custom, key: "1234567", wantErr: "too short"},
	}

	for _, tt := range tests {
		err := ValidateAPIKey(tt.rule, tt.key)
		if tt.wantErr == "" {
			if err != nil {
				t.Fatalf("%s: ValidateAPIKey() error = %v, want nil", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Fatalf("%s: ValidateAPIKey() error = %v, want containing %q", tt.name, err, tt.wantErr)
		}
	}

	if !errors.Is(ValidateAPIKey(custom, ""), ErrMissingAPIKey) {
		t.Fatalf("ValidateAPIKey(empty) is not ErrMissingAPIKey")
	}
}

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("section 2: %w", &Error{Provider: "gemini", Kind: KindRateLimited, StatusCode: 429})
	if KindOf(err) != KindRateLimited {
		t.Fatalf("KindOf() = %q, want %q", KindOf(err), KindRateLimited)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("KindOf(plain) = %q, want empty", KindOf(errors.New("plain")))
	}
}

func TestRegistryResolvesNormalizedNames(t *testing.T) {
	t.Parallel()

	registry := NewDefaultRegistry(Endpoints{}, nil)
	if got := strings.Join(registry.Names(), ","); got != "anthropic,custom,gemini" {
		t.Fatalf("Names() = %q, want anthropic,custom,gemini", got)
	}

	p, err := registry.Provider("  Anthropic ")
	if err != nil {
		t.Fatalf("Provider() error = %v", err)
	}
	if p.Name() != "anthropic" {
		t.Fatalf("Provider().Name() = %q, want anthropic", p.Name())
	}

	_, err = registry.Provider("openrouter")
	if err == nil || !strings.Contains(err.Error(), "anthropic, custom, gemini") {
		t.Fatalf("Provider(unknown) error = %v, want list of available providers", err)
	}
}
