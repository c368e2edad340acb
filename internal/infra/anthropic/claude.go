package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dictation/internal/domain"
)

const apiVersion = "2023-06-01"

var budget = domain.TokenBudget{Multiplier: 2, Floor: 100, Ceiling: 4096}

type ClaudeClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewClaudeClient() *ClaudeClient {
	return NewClaudeClientWithURL("https://api.anthropic.com/v1")
}

func NewClaudeClientWithURL(baseURL string) *ClaudeClient {
	return &ClaudeClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *ClaudeClient) Budget() domain.TokenBudget { return budget }

// Complete returns the first text block of the reply, or "" when the model
// answered without one.
func (c *ClaudeClient) Complete(ctx context.Context, call domain.CompletionCall) (string, error) {
	reqBody := request{
		Model:     call.Model,
		MaxTokens: call.MaxTokens,
		System:    call.SystemPrompt,
		Messages: []message{
			{Role: "user", Content: call.Text},
		},
	}
	if call.Temperature > 0 {
		t := call.Temperature
		reqBody.Temperature = &t
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", call.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", domain.StatusError("anthropic", resp.StatusCode, string(respBody))
	}

	var result response
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	for _, block := range result.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}
