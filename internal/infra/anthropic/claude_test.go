package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dictation/internal/domain"
	"dictation/internal/infra/anthropic"
)

func call() domain.CompletionCall {
	return domain.CompletionCall{
		Model:        "claude-3-5-haiku-latest",
		SystemPrompt: "clean up the text",
		Text:         "so um the meeting is at noon",
		MaxTokens:    120,
		Temperature:  0.3,
		APIKey:       "test-key",
	}
}

func TestClaudeClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key: got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("anthropic-version: got %q", r.Header.Get("anthropic-version"))
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req["system"] != "clean up the text" || req["max_tokens"] != float64(120) {
			t.Errorf("unexpected request %v", req)
		}

		response := map[string]any{
			"content": []map[string]string{
				{"type": "thinking", "text": ""},
				{"type": "text", "text": "The meeting is at noon."},
				{"type": "text", "text": "ignored"},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := anthropic.NewClaudeClientWithURL(server.URL)

	text, err := client.Complete(context.Background(), call())
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if text != "The meeting is at noon." {
		t.Errorf("got %q, want first text block", text)
	}
}

func TestClaudeClient_NoTextBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	client := anthropic.NewClaudeClientWithURL(server.URL)
	text, err := client.Complete(context.Background(), call())
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
}

func TestClaudeClient_Errors(t *testing.T) {
	tests := []struct {
		status int
		want   domain.ErrorKind
	}{
		{http.StatusUnauthorized, domain.KindAuth},
		{http.StatusTooManyRequests, domain.KindQuota},
		{529, domain.KindServer},
		{http.StatusBadRequest, domain.KindInvalidRequest},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"type":"error","error":{"type":"x","message":"y"}}`))
		}))

		client := anthropic.NewClaudeClientWithURL(server.URL)
		_, err := client.Complete(context.Background(), call())
		if got := domain.KindOf(err); got != tt.want {
			t.Errorf("status %d: kind = %s, want %s", tt.status, got, tt.want)
		}
		server.Close()
	}
}
