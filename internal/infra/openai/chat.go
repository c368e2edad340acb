package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"dictation/internal/domain"
)

var chatBudget = domain.TokenBudget{Multiplier: 2, Floor: 100, Ceiling: 4096}

// ChatClient reasons over text with OpenAI models. Reasoning models (o-series,
// gpt-5) go through the Responses API, everything else through chat
// completions.
type ChatClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewChatClient() *ChatClient {
	return NewChatClientWithURL(defaultBaseURL)
}

func NewChatClientWithURL(baseURL string) *ChatClient {
	return &ChatClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *ChatClient) Budget() domain.TokenBudget { return chatBudget }

func (c *ChatClient) Complete(ctx context.Context, call domain.CompletionCall) (string, error) {
	if usesResponsesAPI(call.Model) {
		return c.respond(ctx, call)
	}

	client := newClient(call.APIKey, c.baseURL, c.httpClient)
	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: call.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: call.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: call.Text},
		},
		MaxTokens:   call.MaxTokens,
		Temperature: float32(call.Temperature),
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func usesResponsesAPI(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

type responsesRequest struct {
	Model           string `json:"model"`
	Instructions    string `json:"instructions,omitempty"`
	Input           string `json:"input"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
	Store           bool   `json:"store"`
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// text prefers the aggregated output_text and otherwise joins the text parts
// of every message item.
func (r responsesResponse) text() string {
	if strings.TrimSpace(r.OutputText) != "" {
		return r.OutputText
	}
	var sb strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" || part.Type == "text" {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String()
}

func (c *ChatClient) respond(ctx context.Context, call domain.CompletionCall) (string, error) {
	body, err := json.Marshal(responsesRequest{
		Model:           call.Model,
		Instructions:    call.SystemPrompt,
		Input:           call.Text,
		MaxOutputTokens: call.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+call.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", domain.StatusError(providerName, resp.StatusCode, string(respBody))
	}

	var result responsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return result.text(), nil
}
