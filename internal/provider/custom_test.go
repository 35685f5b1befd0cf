package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCustomTranslateUsesResponsesEndpoint(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer local-key-123" {
			t.Errorf("Authorization = %q, want bearer key", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"output_text":"translated"}`)
	}))
	t.Cleanup(server.Close)

	p := NewCustom(server.URL+"/v1/", &http.Client{Timeout: 3 * time.Second})
	got, err := p.Translate(context.Background(), Request{APIKey: "local-key-123", Text: "# title"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "translated" {
		t.Fatalf("translated = %q, want %q", got, "translated")
	}
}

func TestCustomTranslateJoinsOutputItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"output":[{"content":[{"type":"output_text","text":"a"},{"type":"refusal","text":"no"}]},{"content":[{"type":"output_text","text":"b"}]}]}`)
	}))
	t.Cleanup(server.Close)

	p := NewCustom(server.URL, nil)
	got, err := p.Translate(context.Background(), Request{APIKey: "local-key-123", Text: "x"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "a\nb" {
		t.Fatalf("Translate() = %q, want %q", got, "a\nb")
	}
}

func TestCustomTranslateDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"temporary failure"}}`)
	}))
	t.Cleanup(server.Close)

	p := NewCustom(server.URL, nil)
	_, err := p.Translate(context.Background(), Request{APIKey: "local-key-123", Text: "x"})
	if KindOf(err) != KindStatus {
		t.Fatalf("KindOf(err) = %q, want %q", KindOf(err), KindStatus)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("request calls = %d, want 1", calls)
	}
}

func TestCustomTranslateMissingOutput(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"output":[]}`)
	}))
	t.Cleanup(server.Close)

	p := NewCustom(server.URL, nil)
	_, err := p.Translate(context.Background(), Request{APIKey: "local-key-123", Text: "x"})
	if KindOf(err) != KindInvalidResponse {
		t.Fatalf("KindOf(err) = %q, want %q", KindOf(err), KindInvalidResponse)
	}
}
