package notify

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"

	"dictation/internal/domain"
)

// Desktop shows events as native OS notifications.
type Desktop struct {
	send func(title, body string) error
}

func NewDesktop() *Desktop {
	return NewDesktopWith(func(title, body string) error {
		return beeep.Notify(title, body, "")
	})
}

func NewDesktopWith(send func(title, body string) error) *Desktop {
	return &Desktop{send: send}
}

func (d *Desktop) Notify(_ context.Context, e domain.Event) error {
	title, body, ok := Message(e)
	if !ok {
		return nil
	}
	if err := d.send(title, body); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}
