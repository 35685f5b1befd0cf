package provider

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-3-5-sonnet-20241022"
	anthropicMaxTokens    = 4096
)

// Anthropic calls the Messages API.
type Anthropic struct {
	endpoint   string
	httpClient *http.Client
}

func NewAnthropic(baseURL string, httpClient *http.Client) *Anthropic {
	return &Anthropic{
		endpoint:   normalizeBaseURL(baseURL, anthropicBaseURL) + "/v1/messages",
		httpClient: httpClient,
	}
}

func (a *Anthropic) Name() string         { return "anthropic" }
func (a *Anthropic) DefaultModel() string { return anthropicDefaultModel }
func (a *Anthropic) KeyRule() KeyRule     { return KeyRule{Prefix: "sk-ant-", MinLength: 40} }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

func (a *Anthropic) Translate(ctx context.Context, req Request) (string, error) {
	payload := anthropicRequest{
		Model:     modelOrDefault(a, req.Model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPrompt(req.PromptTemplate, req.Text)},
		},
	}

	header := http.Header{}
	header.Set("x-api-key", req.APIKey)
	header.Set("anthropic-version", anthropicVersion)
	header.Set("anthropic-dangerous-direct-browser-access", "true")

	body, err := postJSON(ctx, a.httpClient, a.Name(), a.endpoint, header, payload)
	if err != nil {
		return "", err
	}
	return a.extractText(body)
}

func (a *Anthropic) extractText(body []byte) (string, error) {
	var parsed struct {
		Content []struct {
			Text *string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", invalidResponse(a.Name(), "response is not the expected JSON object")
	}
	if len(parsed.Content) == 0 {
		return "", invalidResponse(a.Name(), "missing content")
	}
	if parsed.Content[0].Text == nil {
		return "", invalidResponse(a.Name(), "content[0].text is not a string")
	}
	return *parsed.Content[0].Text, nil
}
