// realtime/hub.go - WebSocket push to connected learners
package realtime

import (
	"sync"
	"time"

	"studyhub/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 15 * time.Second
	sendBufferSize = 64
	maxMessageSize = 4096
)

// Event types pushed to clients.
const (
	EventAchievementUnlocked = "achievement_unlocked"
	EventLessonCompleted     = "lesson_completed"
	EventFriendRequest       = "friend_request"
	EventFriendAccepted      = "friend_accepted"
	EventDiscussionReply     = "discussion_reply"
	EventGroupMessage        = "group_message"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// wsConn is the part of *websocket.Conn the pumps use.
type wsConn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	ID       string
	UserID   uint
	Username string
	conn     wsConn
	send     chan Message
	done     chan struct{} // closed when writePump exits
	once     sync.Once
}

type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(log *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[uint]map[*Client]struct{}),
		log:     log,
		metrics: m,
	}
}

// SendToUser queues a message on every connection the user has open.
// Slow clients drop messages instead of blocking the caller.
func (h *Hub) SendToUser(userID uint, msgType string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		client.enqueue(Message{Type: msgType, Payload: payload}, h.log)
	}
}

func (h *Hub) SendToUsers(userIDs []uint, msgType string, payload interface{}) {
	for _, id := range userIDs {
		h.SendToUser(id, msgType, payload)
	}
}

func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Upgrade rejects plain HTTP and anonymous requests before the websocket
// handler runs. The auth middleware must have set "userId".
func (h *Hub) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if c.Locals("userId") == nil {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	}
}

// Handler serves one websocket connection until it closes.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userId").(uint)
		username, _ := conn.Locals("username").(string)
		if userID == 0 {
			_ = conn.Close()
			return
		}
		h.serve(conn, userID, username)
	})
}

// serve pumps one connection. It returns only after writePump has exited;
// conn must not be used once the websocket handler returns.
func (h *Hub) serve(conn wsConn, userID uint, username string) {
	client := &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		conn:     conn,
		send:     make(chan Message, sendBufferSize),
		done:     make(chan struct{}),
	}

	h.register(client)
	defer func() {
		h.unregister(client)
		<-client.done
	}()

	go h.writePump(client)
	client.enqueue(Message{Type: "connected", Payload: fiber.Map{"client_id": client.ID}}, h.log)
	h.readPump(client)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionOpened()
	}
	h.log.Debug("websocket connected", zap.Uint("user_id", c.UserID), zap.String("client_id", c.ID))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()

	c.close()
	if h.metrics != nil {
		h.metrics.ConnectionClosed()
	}
	h.log.Debug("websocket disconnected", zap.Uint("user_id", c.UserID), zap.String("client_id", c.ID))
}

// readPump only answers pings; everything the server sends is push.
func (h *Hub) readPump(c *Client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("websocket read error", zap.Uint("user_id", c.UserID), zap.Error(err))
			}
			return
		}
		if msg.Type == "ping" {
			c.enqueue(Message{Type: "pong", Payload: time.Now().Unix()}, h.log)
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				h.log.Warn("websocket write error", zap.Uint("user_id", c.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) enqueue(msg Message, log *zap.Logger) {
	select {
	case c.send <- msg:
	default:
		log.Warn("⚠️ send buffer full, dropping message", zap.Uint("user_id", c.UserID), zap.String("type", msg.Type))
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}
