package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// Event is the envelope pushed to clients after a successful mutation.
type Event struct {
	Type   string `json:"type"`
	ChatID int64  `json:"chat_id"`
	Data   any    `json:"data,omitempty"`
}

const (
	EventMessageCreated = "message_created"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventMessageRead    = "message_read"
	EventChatCreated    = "chat_created"
	EventGroupUpdated   = "group_updated"
	EventMemberLeft     = "member_left"
	EventMemberRemoved  = "member_removed"
)

// Client is one open connection. Events are queued on send and written
// by the connection's own writer goroutine; gorilla allows a single
// concurrent writer per connection.
type Client struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}
}

// close stops the writer, which then closes the connection.
func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump owns every write to the connection, including keepalive pings.
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				logger.Debug("ws write failed", zap.String("event", ev.Type), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Hub manages active WebSocket connections keyed by user ID and provides
// helper methods to push events to one or more users.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a connection for the given user and starts its writer.
func (h *Hub) Register(userID int64, conn *websocket.Conn) *Client {
	c := newClient(conn)
	h.add(userID, c)
	go c.writePump(h.logger.With(zap.Int64("user_id", userID)))
	return c
}

func (h *Hub) add(userID int64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][c] = struct{}{}
}

// Unregister removes a connection for the given user and stops its writer.
func (h *Hub) Unregister(userID int64, c *Client) {
	h.mu.Lock()
	if clients, ok := h.clients[userID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.clients, userID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// Disconnect closes every connection of the user.
func (h *Hub) Disconnect(userID int64) {
	h.mu.Lock()
	clients := h.clients[userID]
	delete(h.clients, userID)
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	if len(clients) > 0 {
		h.logger.Debug("ws: disconnected user", zap.Int64("user_id", userID), zap.Int("connections", len(clients)))
	}
}

// IsOnline reports whether the user has at least one open connection.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// BroadcastToUsers queues the event for all open connections of the given
// users without blocking. A connection whose queue is full is dropped.
func (h *Hub) BroadcastToUsers(userIDs []int64, ev Event) {
	type target struct {
		userID int64
		client *Client
	}
	var slow []target

	h.mu.RLock()
	for _, uid := range userIDs {
		for c := range h.clients[uid] {
			select {
			case c.send <- ev:
			default:
				slow = append(slow, target{uid, c})
			}
		}
	}
	h.mu.RUnlock()

	for _, t := range slow {
		h.logger.Debug("ws send queue full, dropping connection",
			zap.Int64("user_id", t.userID),
			zap.String("event", ev.Type),
		)
		h.Unregister(t.userID, t.client)
	}
}
