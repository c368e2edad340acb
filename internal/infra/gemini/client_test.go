package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dictation/internal/domain"
	"dictation/internal/infra/gemini"
)

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			http.Error(w, "not found: "+r.URL.Path, http.StatusNotFound)
			return
		}
		if r.Header.Get("x-goog-api-key") != "g-key" {
			t.Errorf("x-goog-api-key: got %q", r.Header.Get("x-goog-api-key"))
		}
		if r.URL.Query().Get("key") != "" {
			t.Error("api key must not be sent in the query string")
		}

		var req struct {
			SystemInstruction struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
			GenerationConfig struct {
				MaxOutputTokens int `json:"maxOutputTokens"`
			} `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.SystemInstruction.Parts) != 1 || req.SystemInstruction.Parts[0].Text != "clean up" {
			t.Errorf("unexpected system instruction %+v", req.SystemInstruction)
		}
		if req.GenerationConfig.MaxOutputTokens != 600 {
			t.Errorf("maxOutputTokens: got %d", req.GenerationConfig.MaxOutputTokens)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"thinking...","thought":true},{"text":"Hello "},{"text":"there."}]}}]}`))
	}))
	defer server.Close()

	client := gemini.NewClientWithURL(server.URL)
	text, err := client.Complete(context.Background(), domain.CompletionCall{
		Model:        "gemini-2.0-flash",
		SystemPrompt: "clean up",
		Text:         "hello there",
		MaxTokens:    600,
		APIKey:       "g-key",
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if text != "Hello there." {
		t.Errorf("got %q", text)
	}
}

func TestClient_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	text, err := gemini.NewClientWithURL(server.URL).Complete(context.Background(), domain.CompletionCall{Model: "gemini-1.5-pro", APIKey: "k"})
	if err != nil || text != "" {
		t.Errorf("expected empty text without error, got %q, %v", text, err)
	}
}

func TestClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := gemini.NewClientWithURL(server.URL).Complete(context.Background(), domain.CompletionCall{Model: "gemini-2.0-flash", APIKey: "k"})
	if domain.KindOf(err) != domain.KindQuota {
		t.Errorf("expected quota error, got %v", err)
	}
}
