package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	customDefaultModel    = "gpt-4o-mini"
	customMaxOutputTokens = 8192
)

// Custom talks to any endpoint that implements the OpenAI Responses API.
type Custom struct {
	endpoint   string
	httpClient *http.Client
}

// NewCustom accepts a base URL with or without a trailing /v1.
func NewCustom(baseURL string, httpClient *http.Client) *Custom {
	baseURL = normalizeBaseURL(baseURL, "https://api.openai.com")
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	return &Custom{
		endpoint:   baseURL + "/v1/responses",
		httpClient: httpClient,
	}
}

func (c *Custom) Name() string         { return "custom" }
func (c *Custom) DefaultModel() string { return customDefaultModel }
func (c *Custom) KeyRule() KeyRule     { return KeyRule{MinLength: 8} }

func (c *Custom) Translate(ctx context.Context, req Request) (string, error) {
	payload := map[string]any{
		"model":             modelOrDefault(c, req.Model),
		"max_output_tokens": customMaxOutputTokens,
		"input": []map[string]any{
			{
				"type": "message",
				"role": "user",
				"content": []map[string]any{
					{
						"type": "input_text",
						"text": BuildPrompt(req.PromptTemplate, req.Text),
					},
				},
			},
		},
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+req.APIKey)

	body, err := postJSON(ctx, c.httpClient, c.Name(), c.endpoint, header, payload)
	if err != nil {
		return "", err
	}
	return c.extractOutputText(body)
}

func (c *Custom) extractOutputText(body []byte) (string, error) {
	var parsed struct {
		OutputText *string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", invalidResponse(c.Name(), "response is not the expected JSON object")
	}

	if parsed.OutputText != nil && *parsed.OutputText != "" {
		return *parsed.OutputText, nil
	}

	var builder strings.Builder
	found := false
	for _, item := range parsed.Output {
		for _, content := range item.Content {
			if content.Type != "output_text" {
				continue
			}
			if found {
				builder.WriteString("\n")
			}
			builder.WriteString(content.Text)
			found = true
		}
	}

	if !found {
		return "", invalidResponse(c.Name(), "missing output_text")
	}
	return builder.String(), nil
}
