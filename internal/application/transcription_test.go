package application_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"dictation/internal/application"
	"dictation/internal/domain"
	"dictation/internal/infra"
)

func speech() domain.AudioBuffer {
	return domain.AudioBuffer{Data: []byte{1, 2, 3, 4}, Format: domain.DefaultAudioFormat()}
}

func newDispatcher(bridge application.LocalBridge, cloud application.CloudTranscriber, creds application.CredentialSource) *application.TranscriptionDispatcher {
	return application.NewTranscriptionDispatcher(application.TranscriptionDispatcherConfig{
		Local:         bridge,
		Cloud:         cloud,
		Credentials:   creds,
		LocalStrategy: infra.LocalStrategy(time.Second),
		CloudStrategy: fastStrategy("openai"),
	}, zap.NewNop())
}

func TestTranscriptionDispatcher_LocalSuccess(t *testing.T) {
	bridge := &mockBridge{ready: true, result: application.LocalResult{Success: true, Text: "  hello there "}}
	cloud := &mockCloud{text: "unused"}
	d := newDispatcher(bridge, cloud, newMockCreds(domain.ProviderOpenAI))

	res := d.Transcribe(context.Background(), domain.TranscriptionRequest{
		Audio:     speech(),
		Preferred: domain.EngineLocal,
		Model:     "base.en",
	})

	if !res.Succeeded {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if res.Text != "hello there" {
		t.Errorf("expected trimmed text, got %q", res.Text)
	}
	if res.Source != domain.EngineLocal || res.FallbackUsed {
		t.Errorf("expected local source without fallback, got %s fallback=%v", res.Source, res.FallbackUsed)
	}
	if bridge.lastModel != "base.en" {
		t.Errorf("expected model base.en, got %q", bridge.lastModel)
	}
	if cloud.Calls() != 0 {
		t.Errorf("cloud should not be called, got %d calls", cloud.Calls())
	}
}

func TestTranscriptionDispatcher_FallbackOnce(t *testing.T) {
	tests := []struct {
		name   string
		bridge *mockBridge
	}{
		{"unsuccessful result", &mockBridge{ready: true, result: application.LocalResult{Success: false, Error: "model missing"}}},
		{"bridge error", &mockBridge{ready: true, err: errBoom}},
		{"not ready", &mockBridge{ready: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud := &mockCloud{text: "hello world"}
			d := newDispatcher(tt.bridge, cloud, newMockCreds(domain.ProviderOpenAI))

			res := d.Transcribe(context.Background(), domain.TranscriptionRequest{
				Audio:              speech(),
				Preferred:          domain.EngineLocal,
				AllowCloudFallback: true,
			})

			if !res.Succeeded || res.Text != "hello world" {
				t.Fatalf("expected cloud text, got %+v", res)
			}
			if !res.FallbackUsed || res.Source != domain.EngineCloud {
				t.Errorf("expected fallback to cloud, got source=%s fallback=%v", res.Source, res.FallbackUsed)
			}
			if cloud.Calls() != 1 {
				t.Errorf("expected exactly one cloud call, got %d", cloud.Calls())
			}
			if cloud.model != "whisper-1" {
				t.Errorf("expected default cloud model, got %q", cloud.model)
			}
		})
	}
}

func TestTranscriptionDispatcher_NoFallbackWhenDisallowed(t *testing.T) {
	bridge := &mockBridge{ready: true, result: application.LocalResult{Success: false, Error: "crashed"}}
	cloud := &mockCloud{text: "hello world"}
	d := newDispatcher(bridge, cloud, newMockCreds(domain.ProviderOpenAI))

	res := d.Transcribe(context.Background(), domain.TranscriptionRequest{
		Audio:     speech(),
		Preferred: domain.EngineLocal,
	})

	if res.Succeeded {
		t.Fatal("expected failure")
	}
	if res.Kind != domain.KindLocalEngine {
		t.Errorf("expected local engine failure, got %s", res.Kind)
	}
	if cloud.Calls() != 0 {
		t.Errorf("cloud must not be called, got %d calls", cloud.Calls())
	}
}

func TestTranscriptionDispatcher_LocalEmptyDoesNotFallBack(t *testing.T) {
	bridge := &mockBridge{ready: true, result: application.LocalResult{Success: true, Text: "   "}}
	cloud := &mockCloud{text: "hello world"}
	d := newDispatcher(bridge, cloud, newMockCreds(domain.ProviderOpenAI))

	res := d.Transcribe(context.Background(), domain.TranscriptionRequest{
		Audio:              speech(),
		Preferred:          domain.EngineLocal,
		AllowCloudFallback: true,
	})

	if res.Succeeded || res.Kind != domain.KindEmptyResult {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if cloud.Calls() != 0 {
		t.Errorf("silence must not trigger fallback, got %d cloud calls", cloud.Calls())
	}
}

func TestTranscriptionDispatcher_LocalTimeout(t *testing.T) {
	bridge := &mockBridge{ready: true, delay: time.Second, result: application.LocalResult{Success: true, Text: "late"}}
	cloud := &mockCloud{text: "hello world"}
	d := application.NewTranscriptionDispatcher(application.TranscriptionDispatcherConfig{
		Local:         bridge,
		Cloud:         cloud,
		Credentials:   newMockCreds(domain.ProviderOpenAI),
		LocalStrategy: infra.LocalStrategy(20 * time.Millisecond),
		CloudStrategy: fastStrategy("openai"),
	}, zap.NewNop())

	res := d.Transcribe(context.Background(), domain.TranscriptionRequest{
		Audio:     speech(),
		Preferred: domain.EngineLocal,
	})
	if res.Kind != domain.KindLocalEngine {
		t.Fatalf("expected local engine failure on timeout, got %s (%v)", res.Kind, res.Err)
	}
	if bridge.Calls() != 1 {
		t.Errorf("local engine must not be retried, got %d calls", bridge.Calls())
	}
}

func TestTranscriptionDispatcher_CloudErrors(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		text      string
		wantKind  domain.ErrorKind
		wantCalls int
		wantOK    bool
	}{
		{
			name:      "auth is not retried",
			errs:      []error{domain.StatusError("openai", http.StatusUnauthorized, "bad key")},
			wantKind:  domain.KindAuth,
			wantCalls: 1,
		},
		{
			name:      "quota is not retried",
			errs:      []error{domain.StatusError("openai", http.StatusTooManyRequests, "insufficient_quota")},
			wantKind:  domain.KindQuota,
			wantCalls: 1,
		},
		{
			name:      "server error retried then succeeds",
			errs:      []error{domain.StatusError("openai", http.StatusServiceUnavailable, "")},
			text:      "hello world",
			wantCalls: 2,
			wantOK:    true,
		},
		{
			name: "server error exhausts attempts",
			errs: []error{
				domain.StatusError("openai", http.StatusBadGateway, ""),
				domain.StatusError("openai", http.StatusBadGateway, ""),
				domain.StatusError("openai", http.StatusBadGateway, ""),
			},
			wantKind:  domain.KindServer,
			wantCalls: 3,
		},
		{
			name:      "unclassified error becomes network",
			errs:      []error{errBoom},
			wantKind:  domain.KindNetwork,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud := &mockCloud{text: tt.text, errs: tt.errs}
			d := newDispatcher(nil, cloud, newMockCreds(domain.ProviderOpenAI))

			res := d.Transcribe(context.Background(), domain.TranscriptionRequest{
				Audio:     speech(),
				Preferred: domain.EngineCloud,
			})

			if res.Succeeded != tt.wantOK {
				t.Fatalf("succeeded = %v, want %v (%v)", res.Succeeded, tt.wantOK, res.Err)
			}
			if !tt.wantOK && res.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", res.Kind, tt.wantKind)
			}
			if cloud.Calls() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", cloud.Calls(), tt.wantCalls)
			}
		})
	}
}

func TestTranscriptionDispatcher_AuthInvalidatesKey(t *testing.T) {
	creds := newMockCreds(domain.ProviderOpenAI)
	cloud := &mockCloud{errs: []error{domain.StatusError("openai", http.StatusUnauthorized, "")}}
	d := newDispatcher(nil, cloud, creds)

	d.Transcribe(context.Background(), domain.TranscriptionRequest{Audio: speech(), Preferred: domain.EngineCloud})

	if len(creds.invalidated) != 1 || creds.invalidated[0] != domain.ProviderOpenAI {
		t.Errorf("expected openai key invalidated, got %v", creds.invalidated)
	}
}

func TestTranscriptionDispatcher_MissingKey(t *testing.T) {
	cloud := &mockCloud{text: "hello world"}
	d := newDispatcher(nil, cloud, newMockCreds())

	res := d.Transcribe(context.Background(), domain.TranscriptionRequest{Audio: speech(), Preferred: domain.EngineCloud})

	if res.Kind != domain.KindAuth {
		t.Errorf("expected auth failure, got %s", res.Kind)
	}
	if cloud.Calls() != 0 {
		t.Errorf("cloud must not be called without a key, got %d calls", cloud.Calls())
	}
}

func TestTranscriptionDispatcher_EmptyAudio(t *testing.T) {
	cloud := &mockCloud{text: "hello world"}
	d := newDispatcher(nil, cloud, newMockCreds(domain.ProviderOpenAI))

	res := d.Transcribe(context.Background(), domain.TranscriptionRequest{Preferred: domain.EngineCloud})

	if res.Kind != domain.KindEmptyResult {
		t.Errorf("expected empty result, got %s", res.Kind)
	}
	if cloud.Calls() != 0 {
		t.Errorf("cloud must not be called for empty audio, got %d calls", cloud.Calls())
	}
}
