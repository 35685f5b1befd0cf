// Package apptest builds an App backed by a temporary data directory and a
// local server that plays both the web site being clipped and the Anthropic
// API.
package apptest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mdclip/internal/app"
	"mdclip/internal/config"
)

// APIKey passes the anthropic key format check.
const APIKey = "sk-ant-REDACTED"

// TranslationPrefix is prepended by the fake provider to the heading of
// every section, so a translated section reads "訳: # Heading".
const TranslationPrefix = "訳: "

const ArticleHTML = `<!doctype html>
<html><head><title>Field Guide</title></head>
<body><article>
<h1>Field Guide</h1>
<p>Birdwatching rewards patience more than equipment. Start early in the morning when
most songbirds are active and the light is soft enough to pick out colours.</p>
<p><img src="/img/robin.png" alt="robin"></p>
<h2>Equipment</h2>
<p>A pair of eight power binoculars and a small notebook will cover almost every outing.
Write down the time and place for each sighting so you can spot patterns later.</p>
</article></body></html>`

type Fixture struct {
	App    *app.App
	Server *httptest.Server
	Config *config.Config
}

// PageURL is the clippable article served by the fixture.
func (f *Fixture) PageURL() string {
	return f.Server.URL + "/articles/field-guide"
}

// StartServer serves the article page, its image and a fake Anthropic
// messages endpoint.
func StartServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/articles/field-guide", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(ArticleHTML))
	})
	mux.HandleFunc("/img/robin.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("robin-bytes"))
	})
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad request"}}`))
			return
		}
		if r.Header.Get("x-api-key") != APIKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": TranslationPrefix + headline(req.Messages[0].Content)}},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// Settings returns settings with translation enabled against the fake
// provider. The prompt template is the bare section so the fake can echo it.
func Settings() config.Settings {
	settings := config.DefaultSettings()
	settings.EnableTranslation = true
	settings.APIKey = APIKey
	settings.SectionDelay = 0
	settings.PromptTemplate = "{content}"
	return settings
}

// WriteSettings stores Settings, adjusted by configure, in dataDir.
func WriteSettings(t *testing.T, dataDir string, configure func(*config.Settings)) {
	t.Helper()
	settings := Settings()
	if configure != nil {
		configure(&settings)
	}
	cfg := &config.Config{DataDir: dataDir}
	if err := config.SaveSettings(cfg.SettingsPath(), settings); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
}

// New returns a fixture with translation enabled unless configure changes it.
func New(t *testing.T, configure func(*config.Settings)) *Fixture {
	t.Helper()

	server := StartServer(t)
	cfg := &config.Config{
		Environment:      "test",
		LogLevel:         "info",
		DataDir:          t.TempDir(),
		AnthropicBaseURL: server.URL,
		HTTPTimeout:      5 * time.Second,
		UserAgent:        "mdclip-test",
	}
	WriteSettings(t, cfg.DataDir, configure)

	a, err := app.Open(context.Background(), cfg, zerolog.Nop(), app.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("app.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	return &Fixture{App: a, Server: server, Config: cfg}
}

// headline picks the heading line of a prompt, or its first non-empty line.
func headline(prompt string) string {
	first := ""
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return line
		}
		if first == "" {
			first = line
		}
	}
	return first
}
