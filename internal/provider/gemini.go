package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

const (
	geminiBaseURL         = "https://generativelanguage.googleapis.com"
	geminiDefaultModel    = "gemini-1.5-flash"
	geminiMaxOutputTokens = 8192
	geminiTemperature     = 0.3
)

// Gemini calls the generateContent endpoint. The key travels as a query
// parameter, which is why transport errors are redacted.
type Gemini struct {
	baseURL    string
	httpClient *http.Client
}

func NewGemini(baseURL string, httpClient *http.Client) *Gemini {
	return &Gemini{
		baseURL:    normalizeBaseURL(baseURL, geminiBaseURL),
		httpClient: httpClient,
	}
}

func (g *Gemini) Name() string         { return "gemini" }
func (g *Gemini) DefaultModel() string { return geminiDefaultModel }
func (g *Gemini) KeyRule() KeyRule     { return KeyRule{Prefix: "AIza", MinLength: 39} }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

func (g *Gemini) endpoint(model, apiKey string) string {
	return g.baseURL + "/v1beta/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(apiKey)
}

func (g *Gemini) Translate(ctx context.Context, req Request) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: BuildPrompt(req.PromptTemplate, req.Text)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     geminiTemperature,
			MaxOutputTokens: geminiMaxOutputTokens,
		},
	}

	body, err := postJSON(ctx, g.httpClient, g.Name(), g.endpoint(modelOrDefault(g, req.Model), req.APIKey), nil, payload)
	if err != nil {
		return "", err
	}
	return g.extractText(body)
}

func (g *Gemini) extractText(body []byte) (string, error) {
	var parsed struct {
		Candidates []struct {
			Content *struct {
				Parts []struct {
					Text *string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", invalidResponse(g.Name(), "response is not the expected JSON object")
	}
	if len(parsed.Candidates) == 0 {
		return "", invalidResponse(g.Name(), "missing candidates")
	}
	content := parsed.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", invalidResponse(g.Name(), "missing candidates[0].content.parts")
	}
	if content.Parts[0].Text == nil {
		return "", invalidResponse(g.Name(), "candidates[0].content.parts[0].text is not a string")
	}
	return *content.Parts[0].Text, nil
}
