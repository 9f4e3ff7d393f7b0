// Package chat pushes bot conversation messages to WebSocket clients.
//
// Clients connect to /api/ws and send {"type":"subscribe","bot_id":...}.
// Each subscription joins the room for (bot, authenticated user), so a
// user only sees their own conversation. When a Publisher is configured
// every broadcast is also relayed on lowcode.chat.<bot> and other server
// processes deliver it to their local clients.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/presence"
)

// Envelope types pushed to and accepted from clients.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSubscribed  = "subscribed"
	TypeMessage     = "message"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
)

// Envelope is the JSON frame exchanged over the socket.
type Envelope struct {
	Type    string             `json:"type"`
	BotID   string             `json:"bot_id,omitempty"`
	Message *model.ChatMessage `json:"message,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Config tunes connection behaviour. Zero values take defaults.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func (c *Config) applyDefaults() {
	if c.WriteWait == 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait == 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod == 0 {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 64 * 1024
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = 64
	}
}

type roomKey struct {
	botID  string
	userID string
}

// Hub tracks connected clients by room.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	presence *presence.Tracker
	pub      events.Publisher
	origin   string

	mu    sync.RWMutex
	rooms map[roomKey]map[*client]struct{}
}

// NewHub creates a hub. tracker and pub may be nil.
func NewHub(cfg Config, tracker *presence.Tracker, pub events.Publisher) *Hub {
	cfg.applyDefaults()
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth is by bearer token, not cookies.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		presence: tracker,
		pub:      pub,
		origin:   uuid.NewString(),
		rooms:    make(map[roomKey]map[*client]struct{}),
	}
}

// ServeWS upgrades the request and serves the socket for userID until the
// connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("chat: websocket upgrade failed", "err", err)
		return
	}
	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, h.cfg.SendBuffer),
		bots:   make(map[string]bool),
	}
	slog.Debug("chat: client connected", "user", userID)
	go c.writePump()
	c.readPump()
}

// Broadcast delivers msg to local subscribers of its room and relays it to
// other processes when a publisher is configured.
func (h *Hub) Broadcast(ctx context.Context, msg *model.ChatMessage) {
	h.deliver(msg)
	if h.pub == nil {
		return
	}
	if err := h.pub.Publish(ctx, events.ChatSubject(msg.BotID), relayFrame{Origin: h.origin, Message: msg}); err != nil {
		slog.Warn("chat: relay publish failed", "bot", msg.BotID, "err", err)
	}
}

// Subscribers returns the number of local clients in a room.
func (h *Hub) Subscribers(botID, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey{botID, userID}])
}

func (h *Hub) deliver(msg *model.ChatMessage) {
	frame, err := json.Marshal(Envelope{Type: TypeMessage, BotID: msg.BotID, Message: msg})
	if err != nil {
		slog.Warn("chat: marshal message", "err", err)
		return
	}
	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[roomKey{msg.BotID, msg.UserID}]))
	for c := range h.rooms[roomKey{msg.BotID, msg.UserID}] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(frame) {
			slog.Warn("chat: dropping slow client", "user", c.userID, "bot", msg.BotID)
			h.remove(c)
			c.close()
		}
	}
	if h.presence != nil && msg.Role == model.RoleUser {
		h.presence.Record(presence.Activity{BotID: msg.BotID, UserID: msg.UserID, Kind: presence.KindMessage})
	}
}

func (h *Hub) join(c *client, botID string) {
	key := roomKey{botID, c.userID}
	h.mu.Lock()
	clients, ok := h.rooms[key]
	if !ok {
		clients = make(map[*client]struct{})
		h.rooms[key] = clients
	}
	_, already := clients[c]
	clients[c] = struct{}{}
	h.mu.Unlock()

	if !already && h.presence != nil {
		h.presence.Record(presence.Activity{BotID: botID, UserID: c.userID, Kind: presence.KindJoin})
	}
}

func (h *Hub) leave(c *client, botID string) {
	key := roomKey{botID, c.userID}
	h.mu.Lock()
	clients := h.rooms[key]
	_, present := clients[c]
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, key)
	}
	h.mu.Unlock()

	if present && h.presence != nil {
		h.presence.Record(presence.Activity{BotID: botID, UserID: c.userID, Kind: presence.KindLeave})
	}
}

// remove drops c from every room it joined.
func (h *Hub) remove(c *client) {
	for _, botID := range c.subscriptions() {
		h.leave(c, botID)
	}
}
