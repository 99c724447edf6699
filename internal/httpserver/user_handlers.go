package httpserver

import (
	"net/http"

	"messenger/internal/domain"
	"messenger/internal/service"
	"messenger/internal/ws"
)

// profileResponse is a user profile plus live presence. IsOnline is
// omitted when the user hides their status from others.
type profileResponse struct {
	*domain.User
	IsOnline *bool `json:"is_online,omitempty"`
}

func newProfile(u *domain.User, hub *ws.Hub, self bool) profileResponse {
	p := profileResponse{User: u}
	if self || !u.HideOnlineStatus {
		online := hub.IsOnline(u.ID)
		p.IsOnline = &online
	}
	return p
}

// @Summary      Get own profile
// @Tags         profile
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  profileResponse
// @Router       /profile [get]
func handleGetProfile(userSvc *service.UserService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := userSvc.GetProfile(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newProfile(u, hub, true))
	}
}

// @Summary      Get another user's profile
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        userID path int true "User ID"
// @Success      200  {object}  profileResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/{userID} [get]
func handleGetUser(userSvc *service.UserService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "userID")
		if !ok {
			return
		}
		u, err := userSvc.GetProfile(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newProfile(u, hub, id == CurrentUser(r).ID))
	}
}

type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

type avatarRequest struct {
	Avatar *string `json:"avatar"`
}

type themeRequest struct {
	Theme domain.Theme `json:"theme"`
}

type visibilityRequest struct {
	HideOnlineStatus bool `json:"hide_online_status"`
}

// profileUpdate decodes a request body of type T, applies it and responds
// with the refreshed profile.
func profileUpdate[T any](userSvc *service.UserService, hub *ws.Hub, apply func(r *http.Request, userID int64, req T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if !decodeJSON(w, r, &req) {
			return
		}
		userID := CurrentUser(r).ID
		if err := apply(r, userID, req); err != nil {
			writeError(w, r, err)
			return
		}
		u, err := userSvc.GetProfile(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newProfile(u, hub, true))
	}
}

// @Summary      Update nickname
// @Tags         profile
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body nicknameRequest true "Nickname"
// @Success      200  {object}  profileResponse
// @Failure      400  {object}  errorResponse
// @Router       /profile/nickname [put]
func handleUpdateNickname(userSvc *service.UserService, hub *ws.Hub) http.HandlerFunc {
	return profileUpdate(userSvc, hub, func(r *http.Request, userID int64, req nicknameRequest) error {
		return userSvc.UpdateNickname(r.Context(), userID, req.Nickname)
	})
}

func handleUpdateAvatar(userSvc *service.UserService, hub *ws.Hub) http.HandlerFunc {
	return profileUpdate(userSvc, hub, func(r *http.Request, userID int64, req avatarRequest) error {
		return userSvc.UpdateAvatar(r.Context(), userID, req.Avatar)
	})
}

func handleUpdateTheme(userSvc *service.UserService, hub *ws.Hub) http.HandlerFunc {
	return profileUpdate(userSvc, hub, func(r *http.Request, userID int64, req themeRequest) error {
		return userSvc.UpdateTheme(r.Context(), userID, req.Theme)
	})
}

func handleUpdateVisibility(userSvc *service.UserService, hub *ws.Hub) http.HandlerFunc {
	return profileUpdate(userSvc, hub, func(r *http.Request, userID int64, req visibilityRequest) error {
		return userSvc.UpdateVisibility(r.Context(), userID, req.HideOnlineStatus)
	})
}

// @Summary      Delete account
// @Description  Deletes the user, their memberships and every message they sent
// @Tags         profile
// @Security     BearerAuth
// @Success      204
// @Router       /profile [delete]
func handleDeleteAccount(userSvc *service.UserService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := CurrentUser(r).ID
		if err := userSvc.DeleteAccount(r.Context(), userID); err != nil {
			writeError(w, r, err)
			return
		}
		hub.Disconnect(userID)
		w.WriteHeader(http.StatusNoContent)
	}
}
