package application

import (
	"context"

	"dictation/internal/domain"
)

// LocalResult is the answer of the local-inference bridge.
type LocalResult struct {
	Success bool
	Text    string
	Error   string
}

type LocalTranscribeOptions struct {
	Model    string
	Language string
}

// LocalBridge talks to the privileged helper process that runs on-device models.
type LocalBridge interface {
	Ready(ctx context.Context) bool
	TranscribeLocal(ctx context.Context, audio domain.AudioBuffer, opts LocalTranscribeOptions) (LocalResult, error)
	ProcessLocalReasoning(ctx context.Context, text, model, agentName string, cfg domain.ReasoningConfig) (LocalResult, error)
}

// CloudTranscriber is a speech-to-text HTTP API.
type CloudTranscriber interface {
	Transcribe(ctx context.Context, audio domain.AudioBuffer, model, language, apiKey string) (string, error)
}

// CredentialSource resolves provider API keys. Missing keys are reported as
// an Auth error.
type CredentialSource interface {
	APIKey(ctx context.Context, provider domain.Provider) (string, error)
}
