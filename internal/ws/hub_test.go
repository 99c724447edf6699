package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger/internal/domain"
	"messenger/internal/security"
)

type stubUsers struct {
	mock.Mock
	domain.UserRepository
}

func (s *stubUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := s.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

const testOrigin = "http://localhost:3000"

func setup(t *testing.T) (*Hub, *security.TokenService, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	tokens := security.NewTokenService("secret", time.Hour)
	users := new(stubUsers)
	users.On("GetByID", mock.Anything, int64(1)).Return(&domain.User{ID: 1, Username: "alice"}, nil)
	users.On("GetByID", mock.Anything, int64(2)).Return(&domain.User{ID: 2, Username: "bob"}, nil)
	users.On("GetByID", mock.Anything, int64(3)).Return(nil, nil)

	srv := httptest.NewServer(MakeHandler(hub, tokens, users, []string{testOrigin}, zap.NewNop()))
	t.Cleanup(srv.Close)
	return hub, tokens, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if header.Get("Origin") == "" {
		header.Set("Origin", testOrigin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func bearer(t *testing.T, tokens *security.TokenService, id int64, username string) http.Header {
	t.Helper()
	tok, err := tokens.CreateForUser(id, username)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + tok}}
}

func TestHandlerRejects(t *testing.T) {
	_, tokens, srv := setup(t)

	t.Run("MissingToken", func(t *testing.T) {
		_, resp, err := dial(t, srv, http.Header{})
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("BadOrigin", func(t *testing.T) {
		h := bearer(t, tokens, 1, "alice")
		h.Set("Origin", "http://evil.example")
		_, resp, err := dial(t, srv, h)
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, resp, err := dial(t, srv, bearer(t, tokens, 3, "ghost"))
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("UsernameMismatch", func(t *testing.T) {
		_, resp, err := dial(t, srv, bearer(t, tokens, 1, "mallory"))
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestBroadcastAndOnline(t *testing.T) {
	hub, tokens, srv := setup(t)

	alice, _, err := dial(t, srv, bearer(t, tokens, 1, "alice"))
	require.NoError(t, err)
	defer alice.Close()

	tok, err := tokens.CreateForUser(2, "bob")
	require.NoError(t, err)
	bob, resp, err := dial(t, srv, http.Header{"Sec-WebSocket-Protocol": {"bearer, " + tok}})
	require.NoError(t, err)
	defer bob.Close()
	assert.Equal(t, "bearer", resp.Header.Get("Sec-WebSocket-Protocol"))

	require.Eventually(t, func() bool {
		return hub.IsOnline(1) && hub.IsOnline(2)
	}, time.Second, 10*time.Millisecond)
	assert.False(t, hub.IsOnline(3))

	hub.BroadcastToUsers([]int64{1, 2, 3}, Event{Type: EventMessageCreated, ChatID: 9, Data: map[string]any{"id": 1}})

	for _, c := range []*websocket.Conn{alice, bob} {
		var ev Event
		require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
		require.NoError(t, c.ReadJSON(&ev))
		assert.Equal(t, EventMessageCreated, ev.Type)
		assert.Equal(t, int64(9), ev.ChatID)
	}

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool {
		return !hub.IsOnline(1)
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, hub.IsOnline(2))
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.Empty(t, extractToken(r))

	r.Header.Set("Sec-WebSocket-Protocol", "bearer, abc")
	assert.Equal(t, "abc", extractToken(r))

	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", extractToken(r))
}

func TestDisconnect(t *testing.T) {
	hub, tokens, srv := setup(t)

	conns := make([]*websocket.Conn, 2)
	for i := range conns {
		c, _, err := dial(t, srv, bearer(t, tokens, 1, "alice"))
		require.NoError(t, err)
		defer c.Close()
		conns[i] = c
	}
	bob, _, err := dial(t, srv, bearer(t, tokens, 2, "bob"))
	require.NoError(t, err)
	defer bob.Close()
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients[1]) == 2 && len(hub.clients[2]) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Disconnect(1)
	assert.False(t, hub.IsOnline(1))
	assert.True(t, hub.IsOnline(2))

	for _, c := range conns {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := c.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	}

	hub.Disconnect(42)
}

func TestBroadcastDropsFullQueue(t *testing.T) {
	hub := NewHub(nil)
	stalled := newClient(nil)
	hub.add(5, stalled)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBuffer+1; i++ {
			hub.BroadcastToUsers([]int64{5}, Event{Type: EventMessageRead, ChatID: 1})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a stalled client")
	}

	assert.False(t, hub.IsOnline(5))
	assert.Len(t, stalled.send, sendBuffer)
	select {
	case <-stalled.done:
	default:
		t.Fatal("stalled client was not closed")
	}
}
