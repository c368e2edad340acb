package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"dictation/internal/domain"
	"dictation/internal/infra/audio"
)

const defaultBaseURL = "https://api.openai.com/v1"

// WhisperClient uploads finished recordings to the OpenAI transcription
// endpoint. The API key is supplied per call.
type WhisperClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewWhisperClient() *WhisperClient {
	return NewWhisperClientWithURL(defaultBaseURL)
}

func NewWhisperClientWithURL(baseURL string) *WhisperClient {
	return &WhisperClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *WhisperClient) Transcribe(ctx context.Context, buf domain.AudioBuffer, model, language, apiKey string) (string, error) {
	data, err := audio.EncodeWAV(buf)
	if err != nil {
		return "", fmt.Errorf("preparing audio: %w", err)
	}

	client := newClient(apiKey, c.baseURL, c.httpClient)
	resp, err := client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    model,
		FilePath: audio.Filename(buf),
		Reader:   bytes.NewReader(data),
		Language: language,
		Format:   goopenai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", classify(err)
	}

	return resp.Text, nil
}

func newClient(apiKey, baseURL string, httpClient *http.Client) *goopenai.Client {
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient
	return goopenai.NewClientWithConfig(cfg)
}
