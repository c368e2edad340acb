package application

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"dictation/internal/domain"
	"dictation/internal/infra"
)

type reasoningState int

const (
	reasoningIdle reasoningState = iota
	reasoningBusy
)

// ReasoningDispatcher routes a reasoning request to the local bridge or one of
// the cloud adapters. It handles one request at a time; a second request
// while one is in flight fails with AlreadyProcessing.
type ReasoningDispatcher struct {
	adapters   map[domain.Provider]ReasoningAdapter
	strategies map[domain.Provider]infra.Strategy
	local      LocalBridge
	creds      CredentialSource
	logger     *zap.Logger
	tracer     trace.Tracer

	localStrategy infra.Strategy

	mu    sync.Mutex
	state reasoningState
}

type ReasoningDispatcherConfig struct {
	Local         LocalBridge
	Credentials   CredentialSource
	LocalStrategy infra.Strategy
}

func NewReasoningDispatcher(cfg ReasoningDispatcherConfig, logger *zap.Logger) *ReasoningDispatcher {
	return &ReasoningDispatcher{
		adapters:      make(map[domain.Provider]ReasoningAdapter),
		strategies:    make(map[domain.Provider]infra.Strategy),
		local:         cfg.Local,
		creds:         cfg.Credentials,
		logger:        logger.Named("reasoning"),
		tracer:        otel.Tracer("dictation/reasoning"),
		localStrategy: cfg.LocalStrategy,
	}
}

// Register installs the adapter for a cloud provider. Call it before the
// dispatcher is used.
func (d *ReasoningDispatcher) Register(provider domain.Provider, adapter ReasoningAdapter, strategy infra.Strategy) {
	d.adapters[provider] = adapter
	d.strategies[provider] = strategy
}

// Busy reports whether a request is in flight.
func (d *ReasoningDispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == reasoningBusy
}

func (d *ReasoningDispatcher) acquire() (release func(), ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == reasoningBusy {
		return nil, false
	}
	d.state = reasoningBusy
	return func() {
		d.mu.Lock()
		d.state = reasoningIdle
		d.mu.Unlock()
	}, true
}

func (d *ReasoningDispatcher) Reason(ctx context.Context, req domain.ReasoningRequest) domain.ReasoningResult {
	release, ok := d.acquire()
	if !ok {
		d.logger.Warn("reasoning request rejected, another one is in flight", zap.String("model", req.Model))
		return domain.ReasoningFailure(req.Provider, domain.ErrAlreadyProcessing)
	}
	defer release()

	ctx, span := d.tracer.Start(ctx, "reasoning.dispatch", trace.WithAttributes(
		attribute.String("provider", string(req.Provider)),
		attribute.String("model", req.Model),
		attribute.Int("text.length", len(req.Text)),
	))
	defer span.End()

	var result domain.ReasoningResult
	switch req.Provider {
	case domain.ProviderLocal:
		result = d.reasonLocal(ctx, req)
	case domain.ProviderOpenAI, domain.ProviderAnthropic, domain.ProviderGemini:
		result = d.reasonCloud(ctx, req)
	default:
		result = domain.ReasoningFailure(req.Provider, domain.NewError(domain.KindUnsupportedProvider,
			string(req.Provider), fmt.Sprintf("no provider handles model %q", req.Model)))
	}

	span.SetAttributes(attribute.Bool("succeeded", result.Succeeded))
	if !result.Succeeded {
		span.SetAttributes(attribute.String("error.kind", string(result.Kind)))
		d.logger.Warn("reasoning failed",
			zap.String("provider", string(req.Provider)),
			zap.String("model", req.Model),
			zap.String("kind", string(result.Kind)),
			zap.Error(result.Err),
		)
	}
	return result
}

func (d *ReasoningDispatcher) reasonLocal(ctx context.Context, req domain.ReasoningRequest) domain.ReasoningResult {
	if d.local == nil {
		return domain.ReasoningFailure(domain.ProviderLocal, localError("local engine not configured", nil))
	}

	text, err := infra.Execute(ctx, d.localStrategy, func(ctx context.Context) (string, error) {
		res, err := d.local.ProcessLocalReasoning(ctx, req.Text, req.Model, req.AgentName, req.Config)
		if err != nil {
			return "", err
		}
		if !res.Success {
			return "", localError(res.Error, nil)
		}
		return res.Text, nil
	})
	if err != nil {
		if domain.KindOf(err) != domain.KindLocalEngine {
			err = localError("", err)
		}
		return domain.ReasoningFailure(domain.ProviderLocal, err)
	}

	return domain.ReasoningSuccess(text, domain.ProviderLocal)
}

func (d *ReasoningDispatcher) reasonCloud(ctx context.Context, req domain.ReasoningRequest) domain.ReasoningResult {
	adapter, ok := d.adapters[req.Provider]
	if !ok {
		return domain.ReasoningFailure(req.Provider, domain.NewError(domain.KindUnsupportedProvider,
			string(req.Provider), "provider not configured"))
	}

	apiKey, err := d.creds.APIKey(ctx, req.Provider)
	if err != nil {
		return domain.ReasoningFailure(req.Provider, asAuthError(req.Provider, err))
	}

	call := domain.CompletionCall{
		Model:        req.Model,
		SystemPrompt: BuildSystemPrompt(req.AgentName, req.Text),
		Text:         req.Text,
		MaxTokens:    adapter.Budget().MaxTokens(len(req.Text), req.Config.MaxTokens),
		Temperature:  req.Config.Temperature,
		APIKey:       apiKey,
	}

	text, err := infra.Execute(ctx, d.strategies[req.Provider], func(ctx context.Context) (string, error) {
		return adapter.Complete(ctx, call)
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindAuth {
			invalidate(d.creds, req.Provider)
		}
		return domain.ReasoningFailure(req.Provider, err)
	}

	return domain.ReasoningSuccess(text, req.Provider)
}
