package application

import (
	"context"

	"go.uber.org/zap"

	"dictation/internal/domain"
)

// ForwardEvents hands every event to each notifier until events is closed or
// ctx is done. A failing notifier is logged and does not stop the others.
func ForwardEvents(ctx context.Context, events <-chan domain.Event, logger *zap.Logger, notifiers ...Notifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			for _, n := range notifiers {
				if err := n.Notify(ctx, e); err != nil {
					logger.Warn("notifying", zap.String("event", string(e.Type)), zap.Error(err))
				}
			}
		}
	}
}
