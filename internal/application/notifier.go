package application

import (
	"context"

	"dictation/internal/domain"
)

// Notifier presents an event to the user (toast, push, UI stream).
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ domain.Event) error {
	return nil
}

// PasteSink types or pastes text into the focused application.
type PasteSink interface {
	Paste(ctx context.Context, text string) error
}

// PersistenceSink stores finished transcriptions.
type PersistenceSink interface {
	Save(ctx context.Context, entry domain.HistoryEntry) error
}

type NoopPersistence struct{}

func (n *NoopPersistence) Save(_ context.Context, _ domain.HistoryEntry) error {
	return nil
}
