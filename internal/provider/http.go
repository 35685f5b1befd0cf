package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	maxResponseBody = 4 << 20
	maxErrMessage   = 300
)

// postJSON sends one POST and returns the success body. Non-2xx responses are
// classified into an *Error; the body is only used to pull a structured
// message out of it.
func postJSON(ctx context.Context, client *http.Client, providerName, endpoint string, header http.Header, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", providerName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", providerName, redactErr(err))
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Provider: providerName, Kind: KindNetwork, Err: redactErr(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &Error{Provider: providerName, Kind: KindNetwork, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errType, message := parseAPIError(respBody)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{
			Provider:   providerName,
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Type:       errType,
			Message:    message,
		}
	}

	return respBody, nil
}

func classifyStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindStatus
	}
}

// parseAPIError understands the error envelopes of the Anthropic, Gemini and
// OpenAI-compatible APIs. It returns empty strings when the body is not one.
func parseAPIError(body []byte) (string, string) {
	var parsed struct {
		Error struct {
			Type    string `json:"type"`
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", ""
	}

	errType := strings.TrimSpace(parsed.Error.Type)
	if errType == "" {
		errType = strings.TrimSpace(parsed.Error.Status)
	}
	return sanitizeMessage(errType), sanitizeMessage(parsed.Error.Message)
}

func sanitizeMessage(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxErrMessage {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxErrMessage]) + "..."
}

// redactErr strips query parameters from URLs quoted in transport errors so
// keys passed as ?key= never reach logs.
func redactErr(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = redactURL(urlErr.URL)
	}
	return err
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable url)"
	}
	if u.RawQuery != "" {
		u.RawQuery = "REDACTED"
	}
	return u.String()
}

func normalizeBaseURL(baseURL, fallback string) string {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return fallback
	}
	return baseURL
}
