package httpserver

import (
	"net/http"

	"messenger/internal/domain"
	"messenger/internal/service"
	"messenger/internal/ws"
)

type messageCreateRequest struct {
	Content       string   `json:"content"`
	PhotoURL      *string  `json:"photo_url"`
	PhotoCaption  string   `json:"photo_caption"`
	VoiceURL      *string  `json:"voice_url"`
	VoiceDuration *float64 `json:"voice_duration"`
}

func (req messageCreateRequest) attachment() (service.Attachment, error) {
	switch {
	case req.PhotoURL != nil && req.VoiceURL != nil:
		return nil, domain.Invalid("a message carries at most one attachment")
	case req.PhotoURL != nil:
		return service.PhotoAttachment{URL: *req.PhotoURL, Caption: req.PhotoCaption}, nil
	case req.VoiceURL != nil:
		var d float64
		if req.VoiceDuration != nil {
			d = *req.VoiceDuration
		}
		return service.VoiceAttachment{URL: *req.VoiceURL, DurationSeconds: d}, nil
	}
	return nil, nil
}

type messageEditRequest struct {
	Content string `json:"content"`
}

// @Summary      List messages
// @Description  Full history of a chat, oldest first, including system and deleted messages
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        chatID path int true "Chat ID"
// @Success      200  {array}  domain.Message
// @Failure      403  {object}  errorResponse
// @Router       /chats/{chatID}/messages [get]
func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, ok := pathID(w, r, "chatID")
		if !ok {
			return
		}
		msgs, err := msgSvc.List(r.Context(), chatID, CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// @Summary      Send a message
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        chatID path int true "Chat ID"
// @Param        input body messageCreateRequest true "Message"
// @Success      201  {object}  domain.Message
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /chats/{chatID}/messages [post]
func handleSendMessage(msgSvc *service.MessageService, push *notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, ok := pathID(w, r, "chatID")
		if !ok {
			return
		}
		var req messageCreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		att, err := req.attachment()
		if err != nil {
			writeError(w, r, err)
			return
		}

		msg, err := msgSvc.Send(r.Context(), service.SendInput{
			ChatID:     chatID,
			SenderID:   CurrentUser(r).ID,
			Content:    req.Content,
			Attachment: att,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		push.chat(r, chatID, ws.EventMessageCreated, msg)
		writeJSON(w, http.StatusCreated, msg)
	}
}

// messageAction adapts the per-message operations that share a shape:
// act on one message by id, push the result, respond with it.
func messageAction(push *notifier, eventType string, act func(r *http.Request, actorID, messageID int64) (*domain.Message, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID, ok := pathID(w, r, "messageID")
		if !ok {
			return
		}
		msg, err := act(r, CurrentUser(r).ID, messageID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		push.chat(r, msg.ChatID, eventType, msg)
		writeJSON(w, http.StatusOK, msg)
	}
}

// @Summary      Edit a message
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        messageID path int true "Message ID"
// @Param        input body messageEditRequest true "New content"
// @Success      200  {object}  domain.Message
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /messages/{messageID} [put]
func handleEditMessage(msgSvc *service.MessageService, push *notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageEditRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		messageAction(push, ws.EventMessageEdited, func(r *http.Request, actorID, messageID int64) (*domain.Message, error) {
			return msgSvc.Edit(r.Context(), actorID, messageID, req.Content)
		})(w, r)
	}
}

// @Summary      Mark a message as read
// @Tags         messages
// @Security     BearerAuth
// @Param        messageID path int true "Message ID"
// @Success      200  {object}  domain.Message
// @Router       /messages/{messageID}/read [post]
func handleMarkRead(msgSvc *service.MessageService, push *notifier) http.HandlerFunc {
	return messageAction(push, ws.EventMessageRead, func(r *http.Request, actorID, messageID int64) (*domain.Message, error) {
		return msgSvc.MarkRead(r.Context(), actorID, messageID)
	})
}

// @Summary      Delete a message
// @Description  Redacts the message: the body is replaced and attachments are cleared
// @Tags         messages
// @Security     BearerAuth
// @Param        messageID path int true "Message ID"
// @Success      200  {object}  domain.Message
// @Failure      403  {object}  errorResponse
// @Router       /messages/{messageID} [delete]
func handleDeleteMessage(msgSvc *service.MessageService, push *notifier) http.HandlerFunc {
	return messageAction(push, ws.EventMessageDeleted, func(r *http.Request, actorID, messageID int64) (*domain.Message, error) {
		return msgSvc.Delete(r.Context(), actorID, messageID)
	})
}
