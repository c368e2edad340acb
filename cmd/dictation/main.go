package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dictation/config"
	"dictation/internal/application"
	"dictation/internal/domain"
	"dictation/internal/infra/anthropic"
	"dictation/internal/infra/audio"
	"dictation/internal/infra/gemini"
	"dictation/internal/infra/history"
	"dictation/internal/infra/httpapi"
	"dictation/internal/infra/local"
	"dictation/internal/infra/notify"
	"dictation/internal/infra/openai"
	"dictation/internal/infra/paste"
	"dictation/internal/infra/secrets"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := setupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("dictation error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keyCache := secrets.NewCache[string](cfg.Secrets.TTL)
	stopSweep := keyCache.StartAutoCleanup(cfg.Secrets.SweepInterval)
	defer stopSweep()

	creds := secrets.NewCachedSource(secrets.NewStaticSource(map[domain.Provider]string{
		domain.ProviderOpenAI:    cfg.OpenAI.APIKey,
		domain.ProviderAnthropic: cfg.Anthropic.APIKey,
		domain.ProviderGemini:    cfg.Gemini.APIKey,
	}), keyCache, logger)

	bridge := local.NewBridge(local.Config{
		WhisperURL: cfg.Local.WhisperURL,
		OllamaURL:  cfg.Local.OllamaURL,
		Timeout:    cfg.Local.Timeout,
	}, logger)

	whisper := openai.NewWhisperClient()
	chat := openai.NewChatClient()
	claude := anthropic.NewClaudeClient()
	gem := gemini.NewClient()
	if cfg.OpenAI.BaseURL != "" {
		whisper = openai.NewWhisperClientWithURL(cfg.OpenAI.BaseURL)
		chat = openai.NewChatClientWithURL(cfg.OpenAI.BaseURL)
	}
	if cfg.Anthropic.BaseURL != "" {
		claude = anthropic.NewClaudeClientWithURL(cfg.Anthropic.BaseURL)
	}
	if cfg.Gemini.BaseURL != "" {
		gem = gemini.NewClientWithURL(cfg.Gemini.BaseURL)
	}

	stt := application.NewTranscriptionDispatcher(application.TranscriptionDispatcherConfig{
		Local:         bridge,
		Cloud:         whisper,
		Credentials:   creds,
		LocalStrategy: cfg.Strategy("local"),
		CloudStrategy: cfg.Strategy("openai"),
	}, logger)

	reasoner := application.NewReasoningDispatcher(application.ReasoningDispatcherConfig{
		Local:         bridge,
		Credentials:   creds,
		LocalStrategy: cfg.Strategy("local"),
	}, logger)
	reasoner.Register(domain.ProviderOpenAI, chat, cfg.Strategy("openai"))
	reasoner.Register(domain.ProviderAnthropic, claude, cfg.Strategy("anthropic"))
	reasoner.Register(domain.ProviderGemini, gem, cfg.Strategy("gemini"))

	store, closeStore, err := createHistory(ctx, cfg.History, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	controller := application.NewController(application.ControllerDeps{
		Capture:  createCapture(cfg.Audio, logger),
		STT:      stt,
		Reasoner: reasoner,
		Paste: paste.New(paste.Config{
			Mode:            paste.Mode(cfg.Paste.Mode),
			RestoreContents: cfg.Paste.Restore,
		}, logger),
		Persist: store,
	}, application.PipelineConfig{
		Transcription: application.TranscriptionOptions{
			Preferred:          domain.Engine(cfg.Transcription.Engine),
			Model:              cfg.Transcription.Model,
			CloudModel:         cfg.Transcription.CloudModel,
			Language:           cfg.Transcription.Language,
			AllowCloudFallback: cfg.Transcription.AllowCloudFallback,
		},
		Reasoning: application.ReasoningOptions{
			Enabled:   cfg.Reasoning.Enabled,
			Model:     cfg.Reasoning.Model,
			AgentName: cfg.Reasoning.AgentName,
			Config: domain.ReasoningConfig{
				MaxTokens:   cfg.Reasoning.MaxTokens,
				Temperature: cfg.Reasoning.Temperature,
				ContextSize: cfg.Reasoning.ContextSize,
			},
		},
	}, logger)

	hub := notify.NewHub(logger)
	defer hub.Close()

	notifiers := []application.Notifier{hub}
	if cfg.Notify.Desktop {
		notifiers = append(notifiers, notify.NewDesktop())
	}
	if cfg.Notify.Pushover.Enabled {
		notifiers = append(notifiers, notify.NewPushover(cfg.Notify.Pushover.Token, cfg.Notify.Pushover.UserKey))
	}
	go application.ForwardEvents(ctx, controller.Events(), logger, notifiers...)

	server := httpapi.New(httpapi.Config{
		Addr:      cfg.Server.Addr,
		AuthToken: cfg.Server.AuthToken,
		RateLimit: cfg.Server.RateLimit,
	}, controller, hub, logger)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting control API: %w", err)
	}

	logger.Info("starting dictation",
		zap.String("audio_source", cfg.Audio.Source),
		zap.String("engine", cfg.Transcription.Engine),
		zap.Bool("cloud_fallback", cfg.Transcription.AllowCloudFallback),
		zap.Bool("reasoning", cfg.Reasoning.Enabled),
		zap.String("history", cfg.History.Backend),
		zap.String("openai_key", secrets.Redact(cfg.OpenAI.APIKey)),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	controller.Cancel()
	if err := server.Stop(context.Background()); err != nil {
		logger.Warn("stopping control API", zap.Error(err))
	}
	controller.Wait()
	return nil
}

func createCapture(cfg config.AudioConfig, logger *zap.Logger) application.AudioCapture {
	switch cfg.Source {
	case "file":
		return audio.NewFileCapture(cfg.FileDir)
	default:
		return audio.NewMicrophoneCapture(cfg.SampleRate, logger)
	}
}

func createHistory(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (application.PersistenceSink, func(), error) {
	switch cfg.Backend {
	case "file":
		store, err := history.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening history file: %w", err)
		}
		return store, closer(store, logger), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return history.NewRedisStore(client, cfg.RedisKey, cfg.MaxEntries), closer(client, logger), nil
	case "postgres":
		store, err := history.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("migrating history table: %w", err)
		}
		return store, closer(store, logger), nil
	default:
		return &application.NoopPersistence{}, func() {}, nil
	}
}

func closer(c io.Closer, logger *zap.Logger) func() {
	return func() {
		if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Warn("closing history store", zap.Error(err))
		}
	}
}

func setupLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}

	return zc.Build()
}
