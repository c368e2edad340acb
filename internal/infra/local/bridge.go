package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"dictation/internal/application"
	"dictation/internal/domain"
	"dictation/internal/infra/audio"
)

const (
	defaultWhisperURL = "http://127.0.0.1:8178"
	defaultOllamaURL  = "http://127.0.0.1:11434"
	defaultTimeout    = 120 * time.Second
)

var reasoningBudget = domain.TokenBudget{Multiplier: 2, Floor: 256, Ceiling: 2048}

type Config struct {
	WhisperURL string
	OllamaURL  string
	Timeout    time.Duration
}

// Bridge runs on-device inference through a whisper.cpp server for speech and
// an Ollama server for reasoning.
type Bridge struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewBridge(cfg Config, logger *zap.Logger) *Bridge {
	if cfg.WhisperURL == "" {
		cfg.WhisperURL = defaultWhisperURL
	}
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = defaultOllamaURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Bridge{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("local"),
	}
}

// Ready reports whether the whisper server answers its health check.
func (b *Bridge) Ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.WhisperURL+"/health", http.NoBody)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Debug("whisper server unreachable", zap.Error(err))
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (b *Bridge) TranscribeLocal(ctx context.Context, buf domain.AudioBuffer, opts application.LocalTranscribeOptions) (application.LocalResult, error) {
	data, err := audio.EncodeWAV(buf)
	if err != nil {
		return application.LocalResult{}, fmt.Errorf("preparing audio: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", audio.Filename(buf))
	if err != nil {
		return application.LocalResult{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return application.LocalResult{}, fmt.Errorf("writing audio: %w", err)
	}
	_ = writer.WriteField("response_format", "json")
	_ = writer.WriteField("temperature", "0.0")
	if opts.Language != "" {
		_ = writer.WriteField("language", opts.Language)
	}
	if err := writer.Close(); err != nil {
		return application.LocalResult{}, fmt.Errorf("closing writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.WhisperURL+"/inference", &body)
	if err != nil {
		return application.LocalResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return application.LocalResult{}, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return application.LocalResult{}, fmt.Errorf("reading response: %w", err)
	}

	var result inferenceResponse
	if err := json.Unmarshal(respBody, &result); err != nil && resp.StatusCode == http.StatusOK {
		return application.LocalResult{}, fmt.Errorf("decoding whisper response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.Error != "" {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("whisper server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		return application.LocalResult{Success: false, Error: msg}, nil
	}

	return application.LocalResult{Success: true, Text: result.Text}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error"`
}

func (b *Bridge) ProcessLocalReasoning(ctx context.Context, text, model, agentName string, cfg domain.ReasoningConfig) (application.LocalResult, error) {
	body, err := json.Marshal(chatRequest{
		Model: ollamaModel(model),
		Messages: []chatMessage{
			{Role: "system", Content: application.BuildSystemPrompt(agentName, text)},
			{Role: "user", Content: text},
		},
		Options: chatOptions{
			NumPredict:  reasoningBudget.MaxTokens(len(text), cfg.MaxTokens),
			NumCtx:      cfg.ContextSize,
			Temperature: cfg.Temperature,
		},
	})
	if err != nil {
		return application.LocalResult{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.OllamaURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return application.LocalResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return application.LocalResult{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return application.LocalResult{Error: fmt.Sprintf("ollama returned %d", resp.StatusCode)}, nil
		}
		return application.LocalResult{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.Error != "" {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("ollama returned %d", resp.StatusCode)
		}
		return application.LocalResult{Error: msg}, nil
	}

	return application.LocalResult{Success: true, Text: result.Message.Content}, nil
}

// ollamaModel strips the local: / local/ routing prefix.
func ollamaModel(model string) string {
	m := strings.TrimSpace(model)
	for _, prefix := range []string{"local:", "local/"} {
		if len(m) > len(prefix) && strings.EqualFold(m[:len(prefix)], prefix) {
			return m[len(prefix):]
		}
	}
	return m
}
