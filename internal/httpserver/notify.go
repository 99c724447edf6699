package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"messenger/internal/service"
	"messenger/internal/ws"
)

// notifier pushes chat events to the active members of a chat. Push
// failures never fail the request that triggered them.
type notifier struct {
	hub   *ws.Hub
	chats *service.ChatService
}

// chat sends the event to the chat's active members plus any extra users
// (for instance a member who has just been removed).
func (n *notifier) chat(r *http.Request, chatID int64, eventType string, data any, extra ...int64) {
	ids, err := n.chats.ParticipantIDs(r.Context(), chatID)
	if err != nil {
		loggerFrom(r).Warn("push: list participants", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	n.hub.BroadcastToUsers(append(ids, extra...), ws.Event{Type: eventType, ChatID: chatID, Data: data})
}
