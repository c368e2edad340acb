package application_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"dictation/internal/application"
	"dictation/internal/domain"
	"dictation/internal/infra"
)

func fastStrategy(name string) infra.Strategy {
	return infra.Strategy{
		Name:        name,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		Retryable:   infra.DefaultRetryable,
	}
}

type mockBridge struct {
	mu        sync.Mutex
	ready     bool
	result    application.LocalResult
	err       error
	delay     time.Duration
	reasoning application.LocalResult
	calls     int
	lastModel string
}

func (m *mockBridge) Ready(_ context.Context) bool { return m.ready }

func (m *mockBridge) TranscribeLocal(ctx context.Context, _ domain.AudioBuffer, opts application.LocalTranscribeOptions) (application.LocalResult, error) {
	m.mu.Lock()
	m.calls++
	m.lastModel = opts.Model
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return application.LocalResult{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	return m.result, m.err
}

func (m *mockBridge) ProcessLocalReasoning(_ context.Context, _, model, _ string, _ domain.ReasoningConfig) (application.LocalResult, error) {
	m.mu.Lock()
	m.calls++
	m.lastModel = model
	m.mu.Unlock()
	return m.reasoning, m.err
}

func (m *mockBridge) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockCloud returns errs in order, then text.
type mockCloud struct {
	mu    sync.Mutex
	text  string
	errs  []error
	calls int
	model string
}

func (m *mockCloud) Transcribe(_ context.Context, _ domain.AudioBuffer, model, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.model = model
	if m.calls <= len(m.errs) {
		return "", m.errs[m.calls-1]
	}
	return m.text, nil
}

func (m *mockCloud) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockCreds struct {
	mu          sync.Mutex
	keys        map[domain.Provider]string
	invalidated []domain.Provider
}

func newMockCreds(providers ...domain.Provider) *mockCreds {
	keys := make(map[domain.Provider]string)
	for _, p := range providers {
		keys[p] = "sk-test-" + string(p)
	}
	return &mockCreds{keys: keys}
}

func (m *mockCreds) APIKey(_ context.Context, provider domain.Provider) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[provider]
	if !ok {
		return "", domain.ErrNoCredential
	}
	return key, nil
}

func (m *mockCreds) Invalidate(provider domain.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, provider)
}

type mockAdapter struct {
	mu       sync.Mutex
	text     string
	err      error
	budget   domain.TokenBudget
	started  chan struct{}
	release  chan struct{}
	panicMsg string
	calls    []domain.CompletionCall
}

func (m *mockAdapter) Complete(ctx context.Context, call domain.CompletionCall) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.text, m.err
}

func (m *mockAdapter) Budget() domain.TokenBudget { return m.budget }

func (m *mockAdapter) Calls() []domain.CompletionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CompletionCall(nil), m.calls...)
}

type mockCapture struct {
	mu       sync.Mutex
	chunks   [][]byte
	startErr error
	ch       chan []byte
	stops    int
}

func (m *mockCapture) Start(_ context.Context) (<-chan []byte, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ch = make(chan []byte, len(m.chunks))
	for _, c := range m.chunks {
		m.ch <- c
	}
	return m.ch, nil
}

func (m *mockCapture) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	if m.ch != nil {
		close(m.ch)
		m.ch = nil
	}
	return nil
}

func (m *mockCapture) Format() domain.AudioFormat { return domain.DefaultAudioFormat() }
func (m *mockCapture) Name() string               { return "mock" }

type mockPaste struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (m *mockPaste) Paste(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return m.err
}

func (m *mockPaste) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

type mockStore struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

func (m *mockStore) Save(_ context.Context, entry domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockStore) Entries() []domain.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HistoryEntry(nil), m.entries...)
}

// blockingTranscriber holds the pipeline until release is closed.
type blockingTranscriber struct {
	entered chan struct{}
	release chan struct{}
	result  domain.TranscriptionResult
}

func (b *blockingTranscriber) Transcribe(_ context.Context, _ domain.TranscriptionRequest) domain.TranscriptionResult {
	close(b.entered)
	<-b.release
	return b.result
}

type staticReasoner struct {
	result domain.ReasoningResult
	calls  int
}

func (s *staticReasoner) Reason(_ context.Context, req domain.ReasoningRequest) domain.ReasoningResult {
	s.calls++
	r := s.result
	r.Provider = req.Provider
	return r
}

var errBoom = errors.New("boom")
