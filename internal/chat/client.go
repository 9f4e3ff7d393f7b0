package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte

	mu     sync.Mutex
	bots   map[string]bool
	closed bool
}

// enqueue queues a frame without blocking. It reports false when the
// client's buffer is full.
func (c *client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.bots))
	for id := range c.bots {
		out = append(out, id)
	}
	return out
}

func (c *client) reply(env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
		c.conn.Close()
		slog.Debug("chat: client disconnected", "user", c.userID)
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("chat: read error", "user", c.userID, "err", err)
			}
			return
		}
		var in Envelope
		if err := json.Unmarshal(data, &in); err != nil {
			c.reply(Envelope{Type: TypeError, Error: "invalid JSON frame"})
			continue
		}
		c.handle(in)
	}
}

func (c *client) handle(in Envelope) {
	switch in.Type {
	case TypeSubscribe:
		if in.BotID == "" {
			c.reply(Envelope{Type: TypeError, Error: "bot_id is required"})
			return
		}
		c.mu.Lock()
		c.bots[in.BotID] = true
		c.mu.Unlock()
		c.hub.join(c, in.BotID)
		c.reply(Envelope{Type: TypeSubscribed, BotID: in.BotID})
	case TypeUnsubscribe:
		c.mu.Lock()
		delete(c.bots, in.BotID)
		c.mu.Unlock()
		c.hub.leave(c, in.BotID)
	case TypePing:
		c.reply(Envelope{Type: TypePong})
	default:
		c.reply(Envelope{Type: TypeError, Error: "unknown frame type " + in.Type})
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.hub.cfg.WriteWait)); err != nil {
				return
			}
		}
	}
}
