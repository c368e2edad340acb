package application

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"dictation/internal/domain"
	"dictation/internal/infra"
)

const defaultCloudModel = "whisper-1"

// TranscriptionDispatcher turns a finished recording into text using the
// local engine, the cloud API, or the local engine with cloud fallback.
type TranscriptionDispatcher struct {
	local  LocalBridge
	cloud  CloudTranscriber
	creds  CredentialSource
	logger *zap.Logger
	tracer trace.Tracer

	localStrategy infra.Strategy
	cloudStrategy infra.Strategy
}

type TranscriptionDispatcherConfig struct {
	Local         LocalBridge
	Cloud         CloudTranscriber
	Credentials   CredentialSource
	LocalStrategy infra.Strategy
	CloudStrategy infra.Strategy
}

func NewTranscriptionDispatcher(cfg TranscriptionDispatcherConfig, logger *zap.Logger) *TranscriptionDispatcher {
	return &TranscriptionDispatcher{
		local:         cfg.Local,
		cloud:         cfg.Cloud,
		creds:         cfg.Credentials,
		logger:        logger.Named("transcription"),
		tracer:        otel.Tracer("dictation/transcription"),
		localStrategy: cfg.LocalStrategy,
		cloudStrategy: cfg.CloudStrategy,
	}
}

// Transcribe never fails with an error value: every failure is reported in
// the result.
func (d *TranscriptionDispatcher) Transcribe(ctx context.Context, req domain.TranscriptionRequest) domain.TranscriptionResult {
	ctx, span := d.tracer.Start(ctx, "transcription.dispatch", trace.WithAttributes(
		attribute.String("preferred", string(req.Preferred)),
		attribute.Int("audio.bytes", len(req.Audio.Data)),
		attribute.Bool("fallback.allowed", req.AllowCloudFallback),
	))
	defer span.End()

	result := d.dispatch(ctx, req)

	span.SetAttributes(
		attribute.String("source", string(result.Source)),
		attribute.Bool("succeeded", result.Succeeded),
		attribute.Bool("fallback.used", result.FallbackUsed),
	)
	if !result.Succeeded {
		span.SetAttributes(attribute.String("error.kind", string(result.Kind)))
	}
	return result
}

func (d *TranscriptionDispatcher) dispatch(ctx context.Context, req domain.TranscriptionRequest) domain.TranscriptionResult {
	if req.Audio.Empty() {
		return domain.TranscriptionFailure(req.Preferred, domain.NewError(domain.KindEmptyResult, "", "no audio captured"))
	}

	if req.Preferred != domain.EngineLocal {
		return d.transcribeCloud(ctx, req)
	}

	local := d.transcribeLocal(ctx, req)
	if local.Succeeded || local.Kind == domain.KindEmptyResult {
		return local
	}
	if !req.AllowCloudFallback {
		d.logger.Warn("local transcription failed", zap.Error(local.Err))
		return local
	}

	d.logger.Info("local transcription failed, falling back to cloud",
		zap.String("kind", string(local.Kind)),
		zap.Error(local.Err),
	)
	cloud := d.transcribeCloud(ctx, req)
	cloud.FallbackUsed = true
	return cloud
}

func (d *TranscriptionDispatcher) transcribeLocal(ctx context.Context, req domain.TranscriptionRequest) domain.TranscriptionResult {
	if d.local == nil {
		return domain.TranscriptionFailure(domain.EngineLocal, localError("local engine not configured", nil))
	}
	if !d.local.Ready(ctx) {
		return domain.TranscriptionFailure(domain.EngineLocal, localError("local engine not ready", nil))
	}

	opts := LocalTranscribeOptions{Model: req.Model, Language: req.Language}
	text, err := infra.Execute(ctx, d.localStrategy, func(ctx context.Context) (string, error) {
		res, err := d.local.TranscribeLocal(ctx, req.Audio, opts)
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
		return domain.TranscriptionFailure(domain.EngineLocal, err)
	}

	return domain.TranscriptionSuccess(text, domain.EngineLocal)
}

func (d *TranscriptionDispatcher) transcribeCloud(ctx context.Context, req domain.TranscriptionRequest) domain.TranscriptionResult {
	if d.cloud == nil {
		return domain.TranscriptionFailure(domain.EngineCloud,
			domain.NewError(domain.KindUnsupportedProvider, "cloud", "cloud transcription not configured"))
	}

	apiKey, err := d.creds.APIKey(ctx, domain.ProviderOpenAI)
	if err != nil {
		return domain.TranscriptionFailure(domain.EngineCloud, asAuthError(domain.ProviderOpenAI, err))
	}

	model := req.CloudModel
	if model == "" {
		model = defaultCloudModel
	}

	text, err := infra.Execute(ctx, d.cloudStrategy, func(ctx context.Context) (string, error) {
		return d.cloud.Transcribe(ctx, req.Audio, model, req.Language, apiKey)
	})
	if err != nil {
		kind := domain.KindOf(err)
		if kind == domain.KindAuth {
			invalidate(d.creds, domain.ProviderOpenAI)
		}
		if kind == domain.KindUnknown && !errors.Is(err, context.Canceled) {
			err = &domain.Error{Kind: domain.KindNetwork, Provider: string(domain.ProviderOpenAI), Cause: err}
		}
		return domain.TranscriptionFailure(domain.EngineCloud, err)
	}

	return domain.TranscriptionSuccess(text, domain.EngineCloud)
}

func localError(msg string, cause error) *domain.Error {
	if msg == "" && cause == nil {
		msg = "local engine returned no result"
	}
	return &domain.Error{Kind: domain.KindLocalEngine, Provider: string(domain.ProviderLocal), Message: msg, Cause: cause}
}

// asAuthError keeps a classified credential error, and marks anything else
// from the credential source as an auth problem.
func asAuthError(provider domain.Provider, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return &domain.Error{Kind: domain.KindAuth, Provider: string(provider), Message: "loading API key", Cause: err}
}

type invalidator interface {
	Invalidate(provider domain.Provider)
}

// invalidate drops a cached key the provider just rejected.
func invalidate(creds CredentialSource, provider domain.Provider) {
	if inv, ok := creds.(invalidator); ok {
		inv.Invalidate(provider)
	}
}
