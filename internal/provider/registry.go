package provider

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Registry resolves providers by name. Names are matched case-insensitively.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Endpoints overrides the base URLs of the built-in providers. Empty fields
// keep the public endpoints.
type Endpoints struct {
	AnthropicBaseURL string
	GeminiBaseURL    string
	CustomBaseURL    string
}

// NewDefaultRegistry registers anthropic, gemini and custom.
func NewDefaultRegistry(endpoints Endpoints, httpClient *http.Client) *Registry {
	registry := NewRegistry()
	registry.Register(NewAnthropic(endpoints.AnthropicBaseURL, httpClient))
	registry.Register(NewGemini(endpoints.GeminiBaseURL, httpClient))
	registry.Register(NewCustom(endpoints.CustomBaseURL, httpClient))
	return registry
}

func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[normalizeName(p.Name())] = p
}

func (r *Registry) Provider(name string) (Provider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("provider name is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[key]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q (available: %s)", name, strings.Join(r.namesLocked(), ", "))
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
