package application

import (
	"context"

	"dictation/internal/domain"
)

// ReasoningAdapter wraps one cloud LLM API.
type ReasoningAdapter interface {
	Complete(ctx context.Context, call domain.CompletionCall) (string, error)
	Budget() domain.TokenBudget
}

// Transcriber is what the controller needs from the transcription stage.
type Transcriber interface {
	Transcribe(ctx context.Context, req domain.TranscriptionRequest) domain.TranscriptionResult
}

// Reasoner is what the controller needs from the reasoning stage.
type Reasoner interface {
	Reason(ctx context.Context, req domain.ReasoningRequest) domain.ReasoningResult
}
