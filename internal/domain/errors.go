package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	KindUnknown             ErrorKind = "unknown"
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindAuth                ErrorKind = "auth"
	KindQuota               ErrorKind = "quota"
	KindNetwork             ErrorKind = "network"
	KindServer              ErrorKind = "server_error"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindEmptyResult         ErrorKind = "empty_result"
	KindAlreadyProcessing   ErrorKind = "already_processing"
	KindUnsupportedProvider ErrorKind = "unsupported_provider"
	KindLocalEngine         ErrorKind = "local_engine"
)

var (
	ErrAlreadyProcessing = &Error{Kind: KindAlreadyProcessing, Message: "a reasoning request is already in flight"}
	ErrNoCredential      = errors.New("no credential configured")
)

// Retryable reports whether the kind describes a transient failure.
func (k ErrorKind) Retryable() bool {
	return k == KindNetwork || k == KindServer
}

// UserMessage returns the short, actionable text shown in error toasts.
func (k ErrorKind) UserMessage() string {
	switch k {
	case KindPermissionDenied:
		return "Microphone access was denied. Grant permission and try again."
	case KindAuth:
		return "The API key was rejected or is missing. Check your provider settings."
	case KindQuota:
		return "The provider quota or rate limit was reached. Try again later."
	case KindNetwork:
		return "Could not reach the provider. Check your connection."
	case KindServer:
		return "The provider had a server error. Try again in a moment."
	case KindInvalidRequest:
		return "The provider rejected the request. Check the selected model."
	case KindEmptyResult:
		return "No speech was detected."
	case KindAlreadyProcessing:
		return "Still processing the previous request."
	case KindUnsupportedProvider:
		return "The selected model is not supported."
	case KindLocalEngine:
		return "Local transcription failed. Check the local model."
	default:
		return "Something went wrong. Please try again."
	}
}

// Error is the classified failure carried between adapters, the retry policy
// and the dispatchers.
type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Retryable() bool { return e.Kind.Retryable() }

func NewError(kind ErrorKind, provider, message string) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message}
}

func WrapError(kind ErrorKind, provider string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Cause: cause}
}

// KindOf extracts the classification of err, KindUnknown when unclassified.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, ErrNoCredential) {
		return KindAuth
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnknown
}

// KindForStatus classifies a non-2xx provider answer.
func KindForStatus(status int, body string) ErrorKind {
	lower := strings.ToLower(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindQuota
	case strings.Contains(lower, "insufficient_quota") || strings.Contains(lower, "resource_exhausted"):
		return KindQuota
	case status == http.StatusRequestTimeout:
		return KindNetwork
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

// StatusError builds the classified error for a failed HTTP exchange.
func StatusError(provider string, status int, body string) *Error {
	body = strings.TrimSpace(body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return &Error{
		Kind:     KindForStatus(status, body),
		Provider: provider,
		Status:   status,
		Message:  body,
	}
}
