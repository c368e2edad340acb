package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dictation/internal/domain"
)

// Fetcher loads a credential from its origin (config, env, keychain).
type Fetcher interface {
	APIKey(ctx context.Context, provider domain.Provider) (string, error)
}

// StaticSource serves keys resolved at startup from config and environment.
type StaticSource struct {
	keys map[domain.Provider]string
}

func NewStaticSource(keys map[domain.Provider]string) *StaticSource {
	copied := make(map[domain.Provider]string, len(keys))
	for k, v := range keys {
		copied[k] = v
	}
	return &StaticSource{keys: copied}
}

func (s *StaticSource) APIKey(_ context.Context, provider domain.Provider) (string, error) {
	return s.keys[provider], nil
}

// CachedSource fronts a Fetcher with a Cache and treats placeholder values
// as missing.
type CachedSource struct {
	fetcher Fetcher
	cache   *Cache[string]
	logger  *zap.Logger
}

func NewCachedSource(fetcher Fetcher, cache *Cache[string], logger *zap.Logger) *CachedSource {
	return &CachedSource{
		fetcher: fetcher,
		cache:   cache,
		logger:  logger.Named("secrets"),
	}
}

func (s *CachedSource) APIKey(ctx context.Context, provider domain.Provider) (string, error) {
	key := string(provider)
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	v, err := s.fetcher.APIKey(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("loading %s key: %w", provider, err)
	}
	v = strings.TrimSpace(v)
	if IsPlaceholder(v) {
		return "", &domain.Error{
			Kind:     domain.KindAuth,
			Provider: key,
			Message:  "no API key configured",
			Cause:    domain.ErrNoCredential,
		}
	}

	s.cache.Set(key, v)
	s.logger.Debug("credential cached",
		zap.String("provider", key),
		zap.String("key", Redact(v)),
	)
	return v, nil
}

// Invalidate drops a cached key, e.g. after the provider rejected it.
func (s *CachedSource) Invalidate(provider domain.Provider) {
	s.cache.Clear(string(provider))
}

var placeholders = []string{
	"your-api-key",
	"your_api_key",
	"your-api-key-here",
	"your_api_key_here",
	"changeme",
	"sk-...",
	"xxx",
}

// IsPlaceholder reports whether v is empty or an obvious template value.
func IsPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	if strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">") {
		return true
	}
	if strings.HasPrefix(v, "${") {
		return true
	}
	for _, p := range placeholders {
		if v == p {
			return true
		}
	}
	return false
}
