package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Provider is the closed set of backends a reasoning request can be routed to.
// It doubles as the credential namespace for the cloud providers.
type Provider string

const (
	ProviderLocal     Provider = "local"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

var (
	openAIModel = regexp.MustCompile(`^(gpt-|chatgpt-|o[1-9](-|$))`)
	localModel  = regexp.MustCompile(`^(local[:/]|llama|qwen|mistral|mixtral|phi|gemma|deepseek|granite|smollm)|\.gguf$`)
)

// ProviderForModel maps a model identifier to its provider by naming pattern.
// Unknown identifiers yield an UnsupportedProvider error rather than a guess.
func ProviderForModel(model string) (Provider, error) {
	id := strings.ToLower(strings.TrimSpace(model))
	switch {
	case id == "":
		return "", NewError(KindUnsupportedProvider, "", "no model selected")
	case strings.HasPrefix(id, "claude-"):
		return ProviderAnthropic, nil
	case strings.HasPrefix(id, "gemini-"):
		return ProviderGemini, nil
	case openAIModel.MatchString(id):
		return ProviderOpenAI, nil
	case localModel.MatchString(id):
		return ProviderLocal, nil
	default:
		return "", NewError(KindUnsupportedProvider, "", fmt.Sprintf("no provider handles model %q", model))
	}
}

// TokenBudget bounds the completion size a provider is asked for:
// min(max(textLength*Multiplier, Floor), Ceiling).
type TokenBudget struct {
	Multiplier int
	Floor      int
	Ceiling    int
}

// MaxTokens computes the bound for a text of textLen characters. A positive
// override replaces the computed value but is still capped by Ceiling.
func (b TokenBudget) MaxTokens(textLen, override int) int {
	n := textLen * b.Multiplier
	if override > 0 {
		n = override
	}
	if n < b.Floor {
		n = b.Floor
	}
	if b.Ceiling > 0 && n > b.Ceiling {
		n = b.Ceiling
	}
	return n
}

type ReasoningConfig struct {
	MaxTokens   int
	Temperature float64
	ContextSize int
}

type ReasoningRequest struct {
	Text      string
	AgentName string
	Model     string
	Provider  Provider
	Config    ReasoningConfig
}

// NewReasoningRequest resolves the provider from the model identifier, so an
// unsupported model fails here and never reaches a dispatcher.
func NewReasoningRequest(text, model, agentName string, cfg ReasoningConfig) (ReasoningRequest, error) {
	provider, err := ProviderForModel(model)
	if err != nil {
		return ReasoningRequest{}, err
	}
	return ReasoningRequest{
		Text:      text,
		AgentName: agentName,
		Model:     strings.TrimSpace(model),
		Provider:  provider,
		Config:    cfg,
	}, nil
}

// CompletionCall is what a provider adapter receives after the dispatcher has
// resolved credentials, prompt and token bound.
type CompletionCall struct {
	Model        string
	SystemPrompt string
	Text         string
	MaxTokens    int
	Temperature  float64
	APIKey       string
}

type ReasoningResult struct {
	Text      string
	Provider  Provider
	Succeeded bool
	Kind      ErrorKind
	Err       error
}

func ReasoningSuccess(text string, provider Provider) ReasoningResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return ReasoningResult{
			Provider: provider,
			Kind:     KindEmptyResult,
			Err:      NewError(KindEmptyResult, string(provider), "response contained no text"),
		}
	}
	return ReasoningResult{Text: text, Provider: provider, Succeeded: true}
}

func ReasoningFailure(provider Provider, err error) ReasoningResult {
	kind := KindOf(err)
	if kind == "" {
		kind = KindUnknown
	}
	return ReasoningResult{Provider: provider, Kind: kind, Err: err}
}
