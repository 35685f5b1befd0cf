// Package provider sends one Markdown section at a time to a remote LLM API
// and returns the translated text.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider translates one section of Markdown.
type Provider interface {
	Name() string
	DefaultModel() string
	KeyRule() KeyRule
	Translate(ctx context.Context, req Request) (string, error)
}

// Request is one translation attempt for one section.
type Request struct {
	APIKey         string
	Model          string
	Text           string
	PromptTemplate string
}

// Kind classifies a provider failure. It is set once, where the HTTP status
// or transport failure is observed.
type Kind string

const (
	KindAuth            Kind = "authentication"
	KindRateLimited     Kind = "rate_limited"
	KindStatus          Kind = "status"
	KindNetwork         Kind = "network"
	KindInvalidResponse Kind = "invalid_response"
)

// Error is returned by every provider for a failed call. It never carries the
// raw response body.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Type       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		if e.Err != nil {
			return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
		}
		return fmt.Sprintf("%s request failed", e.Provider)
	case KindInvalidResponse:
		return fmt.Sprintf("%s invalid response shape: %s", e.Provider, e.Message)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s API status %d", e.Provider, e.StatusCode)
	if e.Type != "" {
		fmt.Fprintf(&b, " (%s)", e.Type)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is a provider authentication failure (HTTP 401
// or 403).
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

// KindOf returns the failure kind carried by err, or "" when err is not a
// provider error.
func KindOf(err error) Kind {
	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr.Kind
	}
	return ""
}

func invalidResponse(providerName, message string) error {
	return &Error{
		Provider: providerName,
		Kind:     KindInvalidResponse,
		Message:  message,
	}
}

func modelOrDefault(p Provider, model string) string {
	if trimmed := strings.TrimSpace(model); trimmed != "" {
		return trimmed
	}
	return p.DefaultModel()
}
