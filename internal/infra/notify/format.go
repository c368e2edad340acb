package notify

import (
	"dictation/internal/domain"
)

const appTitle = "Dictation"

// Message renders the user-facing notification for an event. ok is false for
// events that should not interrupt the user.
func Message(e domain.Event) (title, body string, ok bool) {
	switch e.Type {
	case domain.EventError:
		body = e.Message
		if body == "" {
			body = e.Kind.UserMessage()
		}
		return appTitle + " error", body, true
	case domain.EventNoAudioDetected:
		return appTitle, domain.KindEmptyResult.UserMessage(), true
	case domain.EventPermissionWarning:
		return appTitle + " needs permission", e.Message, true
	case domain.EventFallbackTriggered:
		return appTitle, e.Message, true
	default:
		return "", "", false
	}
}
