package secrets_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"dictation/internal/domain"
	"dictation/internal/infra/secrets"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := secrets.NewCache(time.Minute, secrets.WithClock[string](clock.Now))

	cache.Set("k", "v")
	if got, ok := cache.Get("k"); !ok || got != "v" {
		t.Fatalf("Get within TTL = %q, %v", got, ok)
	}

	clock.Advance(time.Minute)
	if _, ok := cache.Get("k"); ok {
		t.Fatal("Get after TTL should be absent")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry not evicted on read, len = %d", cache.Len())
	}

	cache.Set("k", "v2")
	if got, ok := cache.Get("k"); !ok || got != "v2" {
		t.Fatalf("Set after expiry = %q, %v", got, ok)
	}
}

func TestCache_Clear(t *testing.T) {
	cache := secrets.NewCache[string](time.Minute)
	cache.Set("k", "v")
	cache.Clear("k")
	if _, ok := cache.Get("k"); ok {
		t.Fatal("cleared key still present")
	}
}

func TestCache_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := secrets.NewCache(time.Minute, secrets.WithClock[string](clock.Now))

	cache.Set("old", "1")
	clock.Advance(30 * time.Second)
	cache.Set("new", "2")
	clock.Advance(45 * time.Second)

	if removed := cache.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if _, ok := cache.Get("new"); !ok {
		t.Error("live entry swept")
	}
}

func TestCache_AutoCleanup(t *testing.T) {
	cache := secrets.NewCache[string](10 * time.Millisecond)
	cache.Set("k", "v")

	stop := cache.StartAutoCleanup(5 * time.Millisecond)
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for cache.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweep never removed the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stop()
	stop()
}

func TestRedact(t *testing.T) {
	secret := "sk-proj-abcdefghijklmnopqrstuvwxyz"
	got := secrets.Redact(secret)
	if strings.Contains(got, "abcdefghijklmnop") {
		t.Errorf("Redact leaked the secret: %s", got)
	}
	if !strings.HasPrefix(got, "sk-p") || !strings.Contains(got, "34 chars") {
		t.Errorf("Redact = %s", got)
	}
}

type countingFetcher struct {
	calls int
	keys  map[domain.Provider]string
}

func (f *countingFetcher) APIKey(_ context.Context, p domain.Provider) (string, error) {
	f.calls++
	return f.keys[p], nil
}

func TestCachedSource(t *testing.T) {
	fetcher := &countingFetcher{keys: map[domain.Provider]string{
		domain.ProviderOpenAI:    "sk-real-key-123456",
		domain.ProviderAnthropic: "your-api-key",
	}}
	src := secrets.NewCachedSource(fetcher, secrets.NewCache[string](time.Minute), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key, err := src.APIKey(ctx, domain.ProviderOpenAI)
		if err != nil || key != "sk-real-key-123456" {
			t.Fatalf("APIKey = %q, %v", key, err)
		}
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", fetcher.calls)
	}

	_, err := src.APIKey(ctx, domain.ProviderAnthropic)
	if domain.KindOf(err) != domain.KindAuth {
		t.Errorf("placeholder key kind = %s, want auth", domain.KindOf(err))
	}

	_, err = src.APIKey(ctx, domain.ProviderGemini)
	if domain.KindOf(err) != domain.KindAuth {
		t.Errorf("missing key kind = %s, want auth", domain.KindOf(err))
	}

	src.Invalidate(domain.ProviderOpenAI)
	if _, err := src.APIKey(ctx, domain.ProviderOpenAI); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 4 {
		t.Errorf("fetcher calls = %d, want 4 after invalidation", fetcher.calls)
	}
}
