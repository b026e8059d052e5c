package ws

import (
	"encoding/json"

	"github.com/google/uuid"

	"office-service/internal/service"
)

// TypingObserver taps conversation fanout and feeds typing events into the
// viewer-side set, so the subscribe-time snapshot reflects typers from every
// instance, not just this one.
func TypingObserver(typing *service.TypingService) func(room string, payload []byte) {
	return func(room string, payload []byte) {
		convKey, ok := service.ConversationFromChannel(room)
		if !ok {
			return
		}

		var event service.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return
		}
		userID, err := uuid.Parse(event.UserID)
		if err != nil {
			return
		}

		switch event.Type {
		case service.EventTypingStart:
			typing.HandleRemote(convKey, userID, true)
		case service.EventTypingStop:
			typing.HandleRemote(convKey, userID, false)
		}
	}
}
