package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dictation/internal/application"
	"dictation/internal/domain"
	"dictation/internal/infra/audio"
)

const maxAudioBytes = 25 << 20

// Recorder is the part of the controller the API drives.
type Recorder interface {
	Start(ctx context.Context) bool
	Stop(ctx context.Context) bool
	Toggle(ctx context.Context) bool
	Cancel() bool
	State() domain.SessionState
	Process(ctx context.Context, sessionID string, audio domain.AudioBuffer) application.Outcome
}

type Config struct {
	Addr      string
	AuthToken string
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int
}

type Server struct {
	cfg      Config
	recorder Recorder
	events   http.Handler
	logger   *zap.Logger
	router   chi.Router

	mu      sync.Mutex
	server  *http.Server
	running bool
}

// New builds the control API. events serves the websocket stream and may be nil.
func New(cfg Config, recorder Recorder, events http.Handler, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		recorder: recorder,
		events:   events,
		logger:   logger.Named("httpapi"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Auth-Token"},
	}))

	// No auth or rate limiting on the health check.
	r.Get("/health", s.handleHealth)

	r.Group(func(pr chi.Router) {
		if s.cfg.RateLimit > 0 {
			pr.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
		}
		pr.Use(s.authenticate)

		pr.Get("/status", s.handleStatus)
		pr.Post("/recording/start", s.handleControl(s.recorder.Start))
		pr.Post("/recording/stop", s.handleControl(s.recorder.Stop))
		pr.Post("/recording/toggle", s.handleControl(s.recorder.Toggle))
		pr.Post("/recording/cancel", s.handleControl(func(context.Context) bool { return s.recorder.Cancel() }))
		pr.Post("/transcribe", s.handleTranscribe)
		if s.events != nil {
			pr.Get("/events", s.events.ServeHTTP)
		}
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.logger.Info("control API starting", zap.String("addr", s.cfg.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control API error", zap.Error(err))
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", zap.Error(err))
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.cfg.AuthToken {
			s.logger.Warn("unauthorized request", zap.String("remote_addr", r.RemoteAddr), zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type controlResponse struct {
	Accepted bool                `json:"accepted"`
	State    domain.SessionState `json:"state"`
}

func (s *Server) handleControl(action func(context.Context) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accepted := action(r.Context())
		status := http.StatusOK
		if !accepted {
			status = http.StatusConflict
		}
		writeJSON(w, status, controlResponse{Accepted: accepted, State: s.recorder.State()})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"state": s.recorder.State()})
}

type transcribeResponse struct {
	SessionID    string           `json:"session_id"`
	Succeeded    bool             `json:"succeeded"`
	Text         string           `json:"text,omitempty"`
	RawText      string           `json:"raw_text,omitempty"`
	Source       domain.Engine    `json:"source,omitempty"`
	Reasoned     bool             `json:"reasoned"`
	FallbackUsed bool             `json:"fallback_used"`
	Kind         domain.ErrorKind `json:"kind,omitempty"`
	Message      string           `json:"message,omitempty"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes+1))
	if err != nil {
		s.logger.Error("reading audio body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if len(data) > maxAudioBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "audio larger than " + humanize.Bytes(maxAudioBytes)})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty audio"})
		return
	}

	buf, err := audio.DecodeWAV(data)
	if err != nil {
		buf = domain.AudioBuffer{Data: data, Format: domain.AudioFormat{Encoding: domain.EncodingContainer}}
	}

	sessionID := uuid.NewString()
	s.logger.Info("received audio via HTTP", zap.String("session", sessionID), zap.String("size", humanize.Bytes(uint64(len(data)))))

	out := s.recorder.Process(r.Context(), sessionID, buf)
	resp := transcribeResponse{
		SessionID:    out.SessionID,
		Succeeded:    out.Succeeded(),
		Text:         out.Text,
		RawText:      out.RawText,
		Source:       out.Source,
		Reasoned:     out.Reasoned,
		FallbackUsed: out.FallbackUsed,
		Kind:         out.Kind,
	}
	status := http.StatusOK
	if !out.Succeeded() {
		resp.Message = out.Kind.UserMessage()
		status = statusForKind(out.Kind)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": running,
		"state":   s.recorder.State(),
	})
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindEmptyResult:
		return http.StatusUnprocessableEntity
	case domain.KindAuth, domain.KindQuota, domain.KindNetwork, domain.KindServer, domain.KindLocalEngine:
		return http.StatusBadGateway
	case domain.KindInvalidRequest, domain.KindUnsupportedProvider:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
