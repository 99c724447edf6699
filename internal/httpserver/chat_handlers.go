package httpserver

import (
	"net/http"

	"messenger/internal/service"
	"messenger/internal/ws"
)

type personalChatRequest struct {
	OtherUsername string `json:"other_username"`
}

type personalChatResponse struct {
	ChatID   int64 `json:"chat_id"`
	Existing bool  `json:"existing"`
}

type groupChatRequest struct {
	Name      string  `json:"name"`
	Avatar    *string `json:"avatar"`
	MemberIDs []int64 `json:"member_ids"`
}

type groupInfoRequest struct {
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

type memberEvent struct {
	UserID int64 `json:"user_id"`
}

// @Summary      List chats
// @Description  Chats the caller is an active member of, most recent activity first
// @Tags         chats
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  domain.ChatSummary
// @Router       /chats [get]
func handleListChats(chatSvc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chats, err := chatSvc.ListForUser(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chats)
	}
}

// @Summary      Open a personal chat
// @Description  Returns the existing personal chat with the user or creates one
// @Tags         chats
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body personalChatRequest true "Other user"
// @Success      200  {object}  personalChatResponse
// @Success      201  {object}  personalChatResponse
// @Failure      404  {object}  errorResponse
// @Router       /chats/personal [post]
func handleCreatePersonalChat(chatSvc *service.ChatService, push *notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req personalChatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		chatID, existing, err := chatSvc.CreatePersonal(r.Context(), CurrentUser(r).ID, req.OtherUsername)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp := personalChatResponse{ChatID: chatID, Existing: existing}
		if existing {
			writeJSON(w, http.StatusOK, resp)
			return
		}
		push.chat(r, chatID, ws.EventChatCreated, resp)
		writeJSON(w, http.StatusCreated, resp)
	}
}

// @Summary      Create a group
// @Tags         chats
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body groupChatRequest true "Group"
// @Success      201  {object}  domain.Chat
// @Failure      400  {object}  errorResponse
// @Router       /chats/groups [post]
func handleCreateGroupChat(chatSvc *service.ChatService, push *notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req groupChatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		chat, err := chatSvc.CreateGroup(r.Context(), service.CreateGroupInput{
			CreatorID: CurrentUser(r).ID,
			Name:      req.Name,
			Avatar:    req.Avatar,
			MemberIDs: req.MemberIDs,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		push.chat(r, chat.ID, ws.EventChatCreated, chat)
		writeJSON(w, http.StatusCreated, chat)
	}
}

// @Summary      Update group name and avatar
// @Tags         chats
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        chatID path int true "Chat ID"
// @Param        input body groupInfoRequest true "Group info"
// @Success      200  {object}  domain.Chat
// @Failure      403  {object}  errorResponse
// @Router       /chats/{chatID} [put]
func handleUpdateGroupInfo(chatSvc *service.ChatService, push *notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, ok := pathID(w, r, "chatID")
		if !ok {
			return
		}
		var req groupInfoRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		chat, err := chatSvc.UpdateGroupInfo(r.Context(), chatID, CurrentUser(r).ID, service.GroupInfoInput{
			Name:   req.Name,
			Avatar: req.Avatar,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		push.chat(r, chatID, ws.EventGroupUpdated, chat)
		writeJSON(w, http.StatusOK, chat)
	}
}

// @Summary      List participants
// @Tags         chats
// @Security     BearerAuth
// @Produce      json
// @Param        chatID path int true "Chat ID"
// @Success      200  {object}  service.ParticipantList
// @Router       /chats/{chatID}/participants [get]
func handleListParticipants(chatSvc *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, ok := pathID(w, r, "chatID")
		if !ok {
			return
		}
		list, err := chatSvc.ListParticipants(r.Context(), chatID, CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// @Summary      Leave a chat
// @Tags         chats
// @Security     BearerAuth
// @Param        chatID path int true "Chat ID"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /chats/{chatID}/leave [post]
func handleLeaveChat(chatSvc *service.ChatService, push *notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, ok := pathID(w, r, "chatID")
		if !ok {
			return
		}
		userID := CurrentUser(r).ID
		if err := chatSvc.Leave(r.Context(), chatID, userID); err != nil {
			writeError(w, r, err)
			return
		}
		push.chat(r, chatID, ws.EventMemberLeft, memberEvent{UserID: userID}, userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary      Remove a group member
// @Tags         chats
// @Security     BearerAuth
// @Param        chatID path int true "Chat ID"
// @Param        memberID path int true "Member user ID"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Router       /chats/{chatID}/members/{memberID} [delete]
func handleRemoveMember(chatSvc *service.ChatService, push *notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, ok := pathID(w, r, "chatID")
		if !ok {
			return
		}
		memberID, ok := pathID(w, r, "memberID")
		if !ok {
			return
		}
		removed, err := chatSvc.RemoveMember(r.Context(), chatID, CurrentUser(r).ID, memberID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if removed {
			push.chat(r, chatID, ws.EventMemberRemoved, memberEvent{UserID: memberID}, memberID)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
