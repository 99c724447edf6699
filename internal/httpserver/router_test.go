package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger/internal/cache"
	"messenger/internal/config"
	"messenger/internal/domain"
	"messenger/internal/security"
	"messenger/internal/store"
	"messenger/internal/ws"
)

const testOrigin = "http://localhost:5173"

type testServer struct {
	*httptest.Server
	hub *ws.Hub
	t   *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		AppName:     "Messenger API",
		DBDriver:    config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "api.db"),
		CORSOrigins: []string{testOrigin},
	}
	st, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	enc, err := security.NewEncryptor([]byte("key"), nil)
	require.NoError(t, err)

	hub := ws.NewHub(nil)
	router := NewRouter(cfg, st, hub,
		security.NewTokenService("secret", time.Hour),
		security.NewPasswordHasher(4),
		enc, cache.Nop{}, zap.NewNop(),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, hub: hub, t: t}
}

// do sends a JSON request and decodes the JSON response into out when set.
func (s *testServer) do(method, path, token string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) register(username, nickname string) (string, *domain.User) {
	s.t.Helper()
	var resp tokenResponse
	status := s.do(http.MethodPost, "/api/auth/register", "", registerRequest{
		Username: username, Password: "pw-" + username, Nickname: nickname,
	}, &resp)
	require.Equal(s.t, http.StatusCreated, status)
	require.NotEmpty(s.t, resp.AccessToken)
	return resp.AccessToken, resp.User
}

func (s *testServer) dialWS(token string) *websocket.Conn {
	s.t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Origin":                 {testOrigin},
		"Sec-WebSocket-Protocol": {"bearer, " + token},
	})
	require.NoError(s.t, err)
	return conn
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil, &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/", "", nil, &body))
	assert.Equal(t, "Messenger API", body["message"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token, alice := s.register("alice", "Alice")
	assert.Equal(t, "alice", alice.Username)

	var errBody errorResponse
	status := s.do(http.MethodPost, "/api/auth/register", "", registerRequest{Username: "alice", Password: "x", Nickname: "A"}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, codeConflict, errBody.Code)

	status = s.do(http.MethodPost, "/api/auth/register", "", registerRequest{Username: "bad name", Password: "x", Nickname: "A"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, codeValidation, errBody.Code)

	status = s.do(http.MethodPost, "/api/auth/login", "", loginRequest{Username: "alice", Password: "nope"}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, codeUnauthorized, errBody.Code)

	var login tokenResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/auth/login", "", loginRequest{Username: "alice", Password: "pw-alice"}, &login))
	assert.Equal(t, "bearer", login.TokenType)

	var me domain.User
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", login.AccessToken, nil, &me))
	assert.Equal(t, alice.ID, me.ID)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", "garbage", nil, nil))

	require.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/profile", token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", token, nil, nil), "token of a deleted user")
}

func TestProfileEndpoints(t *testing.T) {
	s := newTestServer(t)
	aliceTok, alice := s.register("alice", "Alice")
	bobTok, _ := s.register("bob", "Bob")

	var p map[string]any
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/profile/nickname", aliceTok, nicknameRequest{Nickname: "Ally"}, &p))
	assert.Equal(t, "Ally", p["nickname"])
	assert.Contains(t, p, "is_online")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/profile/theme", aliceTok, themeRequest{Theme: "neon"}, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/profile/theme", aliceTok, themeRequest{Theme: domain.ThemeDark}, &p))
	assert.Equal(t, "dark", p["theme"])

	path := fmt.Sprintf("/api/users/%d", alice.ID)
	p = nil
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, path, bobTok, nil, &p))
	assert.Equal(t, false, p["is_online"])
	assert.NotContains(t, p, "hashed_password")

	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/profile/visibility", aliceTok, visibilityRequest{HideOnlineStatus: true}, nil))
	p = nil
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, path, bobTok, nil, &p))
	assert.NotContains(t, p, "is_online")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/users/999", bobTok, nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/users/abc", bobTok, nil, nil))
}

func TestMessagingOverHTTP(t *testing.T) {
	s := newTestServer(t)
	aliceTok, _ := s.register("alice", "Alice")
	bobTok, bob := s.register("bob", "Bob")
	carolTok, carol := s.register("carol", "Carol")

	var chat personalChatResponse
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/chats/personal", aliceTok, personalChatRequest{OtherUsername: "bob"}, &chat))
	assert.False(t, chat.Existing)

	var again personalChatResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/chats/personal", bobTok, personalChatRequest{OtherUsername: "alice"}, &again))
	assert.True(t, again.Existing)
	assert.Equal(t, chat.ChatID, again.ChatID)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/chats/personal", aliceTok, personalChatRequest{OtherUsername: "ghost"}, nil))

	msgsPath := fmt.Sprintf("/api/chats/%d/messages", chat.ChatID)
	var msg domain.Message
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, msgsPath, aliceTok, messageCreateRequest{Content: "hi"}, &msg))
	assert.False(t, msg.IsEdited)

	var errBody errorResponse
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, msgsPath, aliceTok, messageCreateRequest{Content: " "}, &errBody))
	assert.Equal(t, codeValidation, errBody.Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, msgsPath, carolTok, messageCreateRequest{Content: "intrude"}, nil))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, msgsPath, carolTok, nil, nil))

	msgPath := fmt.Sprintf("/api/messages/%d", msg.ID)
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, msgPath, aliceTok, messageEditRequest{Content: "hi!"}, &msg))
	assert.True(t, msg.IsEdited)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, msgPath, bobTok, messageEditRequest{Content: "hijack"}, nil))

	var msgs []domain.Message
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, msgsPath, bobTok, nil, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi!", msgs[0].Content)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, msgPath+"/read", bobTok, nil, &msg))
	assert.True(t, msg.IsRead)

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, msgPath, aliceTok, nil, &msg))
	assert.True(t, msg.IsDeleted)
	assert.Equal(t, domain.RedactedContent, msg.Content)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, msgPath, aliceTok, messageEditRequest{Content: "undo"}, &errBody))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/messages/999", aliceTok, nil, nil))

	var chats []domain.ChatSummary
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/chats", aliceTok, nil, &chats))
	require.Len(t, chats, 1)
	assert.Equal(t, "Bob", *chats[0].Name)
	assert.Equal(t, domain.RedactedContent, *chats[0].LastMessage)

	// groups
	{
		var group domain.Chat
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/chats/groups", aliceTok, groupChatRequest{
			Name: "Team", MemberIDs: []int64{bob.ID, carol.ID},
		}, &group))
		groupPath := fmt.Sprintf("/api/chats/%d", group.ID)

		var list struct {
			Participants []domain.Participant `json:"participants"`
			CreatorID    *int64               `json:"creator_id"`
		}
		require.Equal(t, http.StatusOK, s.do(http.MethodGet, groupPath+"/participants", carolTok, nil, &list))
		assert.Len(t, list.Participants, 3)

		memberPath := fmt.Sprintf("%s/members/%d", groupPath, carol.ID)
		assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, memberPath, bobTok, nil, nil))
		assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, groupPath, bobTok, groupInfoRequest{Name: "Bob's"}, nil))

		var updated domain.Chat
		require.Equal(t, http.StatusOK, s.do(http.MethodPut, groupPath, aliceTok, groupInfoRequest{Name: "Renamed"}, &updated))
		assert.Equal(t, "Renamed", *updated.Name)

		assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, memberPath, aliceTok, nil, nil))
		assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, groupPath+"/leave", bobTok, nil, nil))
		assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, groupPath+"/leave", bobTok, nil, nil))

		var history []domain.Message
		require.Equal(t, http.StatusOK, s.do(http.MethodGet, groupPath+"/messages", aliceTok, nil, &history))
		require.Len(t, history, 2)
		assert.Equal(t, "Carol was removed from the group", history[0].Content)
		assert.Equal(t, "Bob left the group", history[1].Content)
		assert.Nil(t, history[1].SenderID)
	}
}

func TestPushOnSend(t *testing.T) {
	s := newTestServer(t)
	aliceTok, _ := s.register("alice", "Alice")
	bobTok, bob := s.register("bob", "Bob")

	var chat personalChatResponse
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/chats/personal", aliceTok, personalChatRequest{OtherUsername: "bob"}, &chat))

	conn := s.dialWS(bobTok)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.IsOnline(bob.ID) }, time.Second, 10*time.Millisecond)

	var sent domain.Message
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, fmt.Sprintf("/api/chats/%d/messages", chat.ChatID), aliceTok, messageCreateRequest{Content: "ping"}, &sent))

	var ev struct {
		Type   string         `json:"type"`
		ChatID int64          `json:"chat_id"`
		Data   domain.Message `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, ws.EventMessageCreated, ev.Type)
	assert.Equal(t, chat.ChatID, ev.ChatID)
	assert.Equal(t, sent.ID, ev.Data.ID)
	assert.Equal(t, "ping", ev.Data.Content)
}

func TestDeletedAccountLosesAccess(t *testing.T) {
	s := newTestServer(t)
	aliceTok, _ := s.register("alice", "Alice")
	carolTok, carol := s.register("carol", "Carol")

	conn := s.dialWS(carolTok)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.IsOnline(carol.ID) }, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/profile", carolTok, nil, nil))
	assert.False(t, s.hub.IsOnline(carol.ID))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "server closes the deleted user's socket")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", carolTok, nil, nil))

	newTok, newCarol := s.register("carol", "Carol again")
	assert.NotEqual(t, carol.ID, newCarol.ID)
	assert.False(t, s.hub.IsOnline(newCarol.ID))

	var errBody errorResponse
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", carolTok, nil, &errBody))
	assert.Equal(t, codeUnauthorized, errBody.Code)

	var me domain.User
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", newTok, nil, &me))
	assert.Equal(t, newCarol.ID, me.ID)
	assert.Equal(t, "Carol again", me.Nickname)

	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/chats/personal", aliceTok, personalChatRequest{OtherUsername: "carol"}, nil))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.Invalid("bad"), http.StatusBadRequest, codeValidation},
		{domain.ErrMessageDeleted, http.StatusBadRequest, codeValidation},
		{fmt.Errorf("x: %w", domain.ErrUnauthorized), http.StatusUnauthorized, codeUnauthorized},
		{fmt.Errorf("x: %w", domain.ErrForbidden), http.StatusForbidden, codeForbidden},
		{fmt.Errorf("x: %w", domain.ErrNotFound), http.StatusNotFound, codeNotFound},
		{domain.ErrConflict, http.StatusConflict, codeConflict},
		{errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}
	for _, c := range cases {
		status, code := statusFor(c.err)
		assert.Equal(t, c.status, status, c.err.Error())
		assert.Equal(t, c.code, code, c.err.Error())
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rec, req, errors.New("pq: connection refused to 10.0.0.1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, codeInternal, body.Code)
	assert.NotContains(t, body.Error, "10.0.0.1")
}
