package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dictation/internal/infra"
)

type Config struct {
	Audio         AudioConfig            `yaml:"audio"`
	Transcription TranscriptionConfig    `yaml:"transcription"`
	Reasoning     ReasoningConfig        `yaml:"reasoning"`
	OpenAI        ProviderConfig         `yaml:"openai"`
	Anthropic     ProviderConfig         `yaml:"anthropic"`
	Gemini        ProviderConfig         `yaml:"gemini"`
	Local         LocalConfig            `yaml:"local"`
	Secrets       SecretsConfig          `yaml:"secrets"`
	Retry         map[string]RetryConfig `yaml:"retry" validate:"dive"`
	History       HistoryConfig          `yaml:"history"`
	Paste         PasteConfig            `yaml:"paste"`
	Notify        NotifyConfig           `yaml:"notify"`
	Server        ServerConfig           `yaml:"server"`
	Log           LogConfig              `yaml:"log"`
}

type AudioConfig struct {
	Source     string `yaml:"source" validate:"oneof=microphone file"`
	FileDir    string `yaml:"file_dir" validate:"required_if=Source file"`
	SampleRate int    `yaml:"sample_rate" validate:"min=8000,max=48000"`
}

type TranscriptionConfig struct {
	Engine             string `yaml:"engine" validate:"oneof=local cloud"`
	Model              string `yaml:"model"`
	CloudModel         string `yaml:"cloud_model"`
	Language           string `yaml:"language"`
	AllowCloudFallback bool   `yaml:"allow_cloud_fallback"`
}

type ReasoningConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Model       string  `yaml:"model" validate:"required_if=Enabled true"`
	AgentName   string  `yaml:"agent_name"`
	MaxTokens   int     `yaml:"max_tokens" validate:"min=0"`
	Temperature float64 `yaml:"temperature" validate:"min=0,max=2"`
	ContextSize int     `yaml:"context_size" validate:"min=0"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

type LocalConfig struct {
	WhisperURL string        `yaml:"whisper_url" validate:"url"`
	OllamaURL  string        `yaml:"ollama_url" validate:"url"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
}

type SecretsConfig struct {
	TTL           time.Duration `yaml:"ttl" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" validate:"min=0,max=10"`
	BaseDelay      time.Duration `yaml:"base_delay" validate:"min=0"`
	Multiplier     float64       `yaml:"multiplier" validate:"min=0"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"min=0"`
}

type HistoryConfig struct {
	Backend    string `yaml:"backend" validate:"oneof=none file redis postgres"`
	Path       string `yaml:"path" validate:"required_if=Backend file"`
	RedisAddr  string `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisKey   string `yaml:"redis_key"`
	MaxEntries int    `yaml:"max_entries" validate:"min=0"`
	DSN        string `yaml:"dsn" validate:"required_if=Backend postgres"`
}

type PasteConfig struct {
	Mode    string `yaml:"mode" validate:"oneof=keystroke clipboard"`
	Restore bool   `yaml:"restore"`
}

type NotifyConfig struct {
	Desktop  bool           `yaml:"desktop"`
	Pushover PushoverConfig `yaml:"pushover"`
}

type PushoverConfig struct {
	Token   string `yaml:"token" validate:"required_if=Enabled true"`
	UserKey string `yaml:"user_key" validate:"required_if=Enabled true"`
	Enabled bool   `yaml:"enabled"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
	RateLimit int    `yaml:"rate_limit" validate:"min=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Load reads the YAML file at path, expanding ${VAR} references from the
// environment. A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Audio.Source == "" {
		c.Audio.Source = "microphone"
	}
	if c.Audio.FileDir == "" {
		c.Audio.FileDir = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Transcription.Engine == "" {
		c.Transcription.Engine = "local"
	}
	if c.Transcription.CloudModel == "" {
		c.Transcription.CloudModel = "whisper-1"
	}
	if c.Reasoning.Temperature == 0 {
		c.Reasoning.Temperature = 0.3
	}
	if c.Reasoning.AgentName == "" {
		c.Reasoning.AgentName = "Dictation"
	}
	if c.Local.WhisperURL == "" {
		c.Local.WhisperURL = "http://127.0.0.1:8178"
	}
	if c.Local.OllamaURL == "" {
		c.Local.OllamaURL = "http://127.0.0.1:11434"
	}
	if c.Local.Timeout == 0 {
		c.Local.Timeout = 120 * time.Second
	}
	if c.Secrets.TTL == 0 {
		c.Secrets.TTL = 5 * time.Minute
	}
	if c.Secrets.SweepInterval == 0 {
		c.Secrets.SweepInterval = time.Minute
	}
	if c.History.Backend == "" {
		c.History.Backend = "file"
	}
	if c.History.Path == "" {
		c.History.Path = "./history.jsonl"
	}
	if c.History.RedisKey == "" {
		c.History.RedisKey = "dictation:history"
	}
	if c.History.MaxEntries == 0 {
		c.History.MaxEntries = 500
	}
	if c.Paste.Mode == "" {
		c.Paste.Mode = "keystroke"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8765"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Strategy returns the retry strategy for a provider, with configured values
// overriding the defaults. "local" starts from the single-attempt strategy
// bounded by the local timeout.
func (c *Config) Strategy(provider string) infra.Strategy {
	s := infra.CloudStrategy(provider)
	if provider == "local" {
		s = infra.LocalStrategy(c.Local.Timeout)
	}

	r, ok := c.Retry[provider]
	if !ok {
		return s
	}
	if r.MaxAttempts > 0 {
		s.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelay > 0 {
		s.BaseDelay = r.BaseDelay
	}
	if r.Multiplier > 0 {
		s.Multiplier = r.Multiplier
	}
	if r.AttemptTimeout > 0 {
		s.AttemptTimeout = r.AttemptTimeout
	}
	return s
}
