package application

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dictation/internal/domain"
)

const (
	defaultEventBuffer    = 64
	defaultPersistTimeout = 10 * time.Second
	defaultFlushTimeout   = 2 * time.Second
)

type TranscriptionOptions struct {
	Preferred          domain.Engine
	Model              string
	CloudModel         string
	Language           string
	AllowCloudFallback bool
}

type ReasoningOptions struct {
	Enabled   bool
	Model     string
	AgentName string
	Config    domain.ReasoningConfig
}

type PipelineConfig struct {
	Transcription  TranscriptionOptions
	Reasoning      ReasoningOptions
	PersistTimeout time.Duration
	FlushTimeout   time.Duration
	EventBuffer    int
}

// Outcome summarizes one pass of the transcription pipeline.
type Outcome struct {
	SessionID    string
	RawText      string
	Text         string
	Source       domain.Engine
	Reasoned     bool
	FallbackUsed bool
	Kind         domain.ErrorKind
}

func (o Outcome) Succeeded() bool { return o.Kind == "" }

// Controller drives the idle -> recording -> processing -> idle cycle and runs
// the pipeline for each finished recording. Only one session exists at a time.
type Controller struct {
	capture  AudioCapture
	stt      Transcriber
	reasoner Reasoner
	paste    PasteSink
	persist  PersistenceSink
	cfg      PipelineConfig
	logger   *zap.Logger
	now      func() time.Time

	events chan domain.Event

	mu          sync.Mutex
	state       domain.SessionState
	session     *domain.RecordingSession
	captureDone chan struct{}

	pipelines sync.WaitGroup
	saves     sync.WaitGroup
}

type ControllerDeps struct {
	Capture  AudioCapture
	STT      Transcriber
	Reasoner Reasoner
	Paste    PasteSink
	Persist  PersistenceSink
}

func NewController(deps ControllerDeps, cfg PipelineConfig, logger *zap.Logger) *Controller {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	persist := deps.Persist
	if persist == nil {
		persist = &NoopPersistence{}
	}

	return &Controller{
		capture:  deps.Capture,
		stt:      deps.STT,
		reasoner: deps.Reasoner,
		paste:    deps.Paste,
		persist:  persist,
		cfg:      cfg,
		logger:   logger.Named("controller"),
		now:      time.Now,
		events:   make(chan domain.Event, cfg.EventBuffer),
		state:    domain.StateIdle,
	}
}

// Events streams UI notifications. Events are dropped when nobody reads.
func (c *Controller) Events() <-chan domain.Event {
	return c.events
}

func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins a recording. It is a no-op returning false unless the
// controller is idle.
func (c *Controller) Start(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != domain.StateIdle {
		c.mu.Unlock()
		return false
	}

	session := domain.NewRecordingSession(c.now())
	chunks, err := c.capture.Start(context.WithoutCancel(ctx))
	if err != nil {
		c.mu.Unlock()
		kind := domain.KindOf(err)
		c.logger.Error("starting capture", zap.String("source", c.capture.Name()), zap.Error(err))
		c.emit(domain.Event{Type: domain.EventError, SessionID: session.ID, Kind: kind, Message: kind.UserMessage()})
		return false
	}

	done := make(chan struct{})
	c.state = domain.StateRecording
	c.session = session
	c.captureDone = done
	c.mu.Unlock()

	go collect(session, chunks, done)

	c.logger.Info("recording started", zap.String("session", session.ID), zap.String("source", c.capture.Name()))
	c.emit(domain.Event{Type: domain.EventStateChanged, SessionID: session.ID, State: domain.StateRecording})
	return true
}

func collect(session *domain.RecordingSession, chunks <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for chunk := range chunks {
		session.Append(chunk)
	}
}

// Stop ends the recording and hands the audio to the pipeline, which runs in
// the background. It returns false unless a recording was in progress.
func (c *Controller) Stop(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != domain.StateRecording {
		c.mu.Unlock()
		return false
	}
	c.state = domain.StateProcessing
	session, done := c.session, c.captureDone
	session.SetState(domain.StateProcessing)
	c.mu.Unlock()

	c.emit(domain.Event{Type: domain.EventStateChanged, SessionID: session.ID, State: domain.StateProcessing})

	if err := c.capture.Stop(); err != nil {
		c.logger.Warn("stopping capture", zap.Error(err))
	}

	timer := time.NewTimer(c.cfg.FlushTimeout)
	select {
	case <-done:
		timer.Stop()
	case <-timer.C:
		c.logger.Warn("capture did not flush in time, using what was recorded", zap.String("session", session.ID))
	}

	audio := session.Finalize(c.capture.Format())
	c.logger.Info("recording stopped",
		zap.String("session", session.ID),
		zap.String("size", humanize.Bytes(uint64(len(audio.Data)))),
		zap.Duration("duration", c.now().Sub(session.StartedAt)),
	)

	runCtx := context.WithoutCancel(ctx)
	c.pipelines.Add(1)
	go func() {
		defer c.pipelines.Done()
		defer c.finishSession(session.ID)
		c.complete(runCtx, session.ID, audio)
	}()
	return true
}

// Toggle starts when idle and stops when recording. While processing it does
// nothing.
func (c *Controller) Toggle(ctx context.Context) bool {
	switch c.State() {
	case domain.StateIdle:
		return c.Start(ctx)
	case domain.StateRecording:
		return c.Stop(ctx)
	default:
		return false
	}
}

// Cancel discards the current recording without transcribing it.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	if c.state != domain.StateRecording {
		c.mu.Unlock()
		return false
	}
	session := c.session
	c.state = domain.StateIdle
	c.session = nil
	c.captureDone = nil
	c.mu.Unlock()

	if err := c.capture.Stop(); err != nil {
		c.logger.Warn("stopping capture", zap.Error(err))
	}

	c.logger.Info("recording cancelled", zap.String("session", session.ID))
	c.emit(domain.Event{Type: domain.EventStateChanged, SessionID: session.ID, State: domain.StateIdle, Message: "recording discarded"})
	return true
}

// Wait blocks until running pipelines and their history writes are done.
func (c *Controller) Wait() {
	c.pipelines.Wait()
	c.saves.Wait()
}

func (c *Controller) finishSession(sessionID string) {
	c.mu.Lock()
	c.state = domain.StateIdle
	c.session = nil
	c.captureDone = nil
	c.mu.Unlock()

	c.emit(domain.Event{Type: domain.EventStateChanged, SessionID: sessionID, State: domain.StateIdle})
}

func (c *Controller) complete(ctx context.Context, sessionID string, audio domain.AudioBuffer) {
	out := c.Process(ctx, sessionID, audio)
	if !out.Succeeded() {
		return
	}

	c.save(ctx, domain.HistoryEntry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		RawText:   out.RawText,
		Text:      out.Text,
		Source:    out.Source,
		Reasoned:  out.Reasoned,
		CreatedAt: c.now(),
	})

	if err := c.paste.Paste(ctx, out.Text); err != nil {
		c.logger.Warn("pasting text", zap.String("session", sessionID), zap.Error(err))
		c.emit(domain.Event{
			Type:      domain.EventPermissionWarning,
			SessionID: sessionID,
			Kind:      domain.KindPermissionDenied,
			Message:   "Could not paste automatically. Grant accessibility access; the text is on your clipboard.",
			Text:      out.Text,
		})
	}

	c.emit(domain.Event{Type: domain.EventTranscriptionComplete, SessionID: sessionID, Text: out.Text})
}

// Process transcribes audio and, when enabled, runs reasoning over the text.
// It reports failures as events but does not paste or persist anything.
func (c *Controller) Process(ctx context.Context, sessionID string, audio domain.AudioBuffer) Outcome {
	opts := c.cfg.Transcription
	c.logger.Info("transcribing",
		zap.String("session", sessionID),
		zap.String("engine", string(opts.Preferred)),
		zap.String("size", humanize.Bytes(uint64(len(audio.Data)))),
	)

	tr := c.stt.Transcribe(ctx, domain.TranscriptionRequest{
		Audio:              audio,
		Preferred:          opts.Preferred,
		Model:              opts.Model,
		CloudModel:         opts.CloudModel,
		Language:           opts.Language,
		AllowCloudFallback: opts.AllowCloudFallback,
	})

	out := Outcome{SessionID: sessionID, Source: tr.Source, FallbackUsed: tr.FallbackUsed}

	if tr.FallbackUsed {
		c.emit(domain.Event{
			Type:      domain.EventFallbackTriggered,
			SessionID: sessionID,
			Message:   "Local transcription failed, used the cloud instead.",
		})
	}

	text := strings.TrimSpace(tr.Text)
	if !tr.Succeeded || text == "" {
		out.Kind = tr.Kind
		if tr.Succeeded || out.Kind == "" {
			out.Kind = domain.KindEmptyResult
		}
		if out.Kind == domain.KindEmptyResult {
			c.logger.Info("no speech detected", zap.String("session", sessionID))
			c.emit(domain.Event{Type: domain.EventNoAudioDetected, SessionID: sessionID, Message: out.Kind.UserMessage()})
			return out
		}
		c.logger.Error("transcription failed",
			zap.String("session", sessionID),
			zap.String("kind", string(out.Kind)),
			zap.Error(tr.Err),
		)
		c.emit(domain.Event{Type: domain.EventError, SessionID: sessionID, Kind: out.Kind, Message: out.Kind.UserMessage()})
		return out
	}

	out.RawText = text
	out.Text = text

	if reasoned, ok := c.reason(ctx, sessionID, text); ok {
		out.Text = reasoned
		out.Reasoned = true
	}

	c.logger.Info("transcription ready",
		zap.String("session", sessionID),
		zap.String("source", string(out.Source)),
		zap.Bool("reasoned", out.Reasoned),
		zap.Int("chars", len(out.Text)),
	)
	return out
}

// reason returns the reasoned text, or false when the original transcription
// should be used as is.
func (c *Controller) reason(ctx context.Context, sessionID, text string) (string, bool) {
	opts := c.cfg.Reasoning
	if !opts.Enabled || c.reasoner == nil {
		return "", false
	}

	req, err := domain.NewReasoningRequest(text, opts.Model, opts.AgentName, opts.Config)
	if err != nil {
		c.logger.Warn("reasoning skipped", zap.String("session", sessionID), zap.Error(err))
		return "", false
	}

	res := c.reasoner.Reason(ctx, req)
	if !res.Succeeded {
		c.logger.Warn("reasoning failed, keeping transcription",
			zap.String("session", sessionID),
			zap.String("kind", string(res.Kind)),
			zap.Error(res.Err),
		)
		return "", false
	}
	return res.Text, true
}

// save writes the history entry in the background so a slow sink never
// delays the paste.
func (c *Controller) save(ctx context.Context, entry domain.HistoryEntry) {
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.PersistTimeout)
		defer cancel()
		if err := c.persist.Save(saveCtx, entry); err != nil {
			c.logger.Warn("saving history", zap.String("session", entry.SessionID), zap.Error(err))
		}
	}()
}

func (c *Controller) emit(e domain.Event) {
	if e.At.IsZero() {
		e.At = c.now()
	}
	select {
	case c.events <- e:
	default:
		c.logger.Debug("event dropped, no listener", zap.String("type", string(e.Type)))
	}
}
