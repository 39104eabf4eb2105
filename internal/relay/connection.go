package relay

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"modcollab/pkg/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// Conn wraps one participant's WebSocket connection. All writes go through
// the send channel so a single writer goroutine owns the socket.
type Conn struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu        sync.RWMutex
	userID    string
	sessionID string
	username  string
	joined    bool

	closeOnce sync.Once
	limiter   *rateLimiter
}

func newConn(hub *Hub, ws *websocket.Conn) *Conn {
	return &Conn{
		hub:     hub,
		conn:    ws,
		send:    make(chan []byte, sendBuffer),
		limiter: newRateLimiter(),
	}
}

// UserID returns the participant's ID, empty until the first JOIN.
func (c *Conn) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// SessionID returns the joined session's ID, empty until the first JOIN.
func (c *Conn) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Username returns the display name announced in the JOIN.
func (c *Conn) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Conn) markJoined(userID, sessionID, username string) {
	c.mu.Lock()
	c.userID = userID
	c.sessionID = sessionID
	c.username = username
	c.joined = true
	c.mu.Unlock()
}

func (c *Conn) hasJoined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joined
}

// deliver queues an envelope for this participant. A saturated queue drops
// the message instead of stalling the whole room.
func (c *Conn) deliver(msg *types.WireMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("relay: marshal %s failed: %v", msg.Type, err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("relay: send queue full for %s, dropping %s", c.UserID(), msg.Type)
	}
}

// close shuts the socket down once; the writePump exits when send drains.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump reads envelopes and feeds them to the hub. Exits on any read
// error, which also triggers deregistration.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("relay: read error: %v", err)
			}
			return
		}

		if !c.limiter.allow() {
			log.Printf("relay: rate limit exceeded for %s, frame dropped", c.UserID())
			continue
		}

		var msg types.WireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("relay: dropping malformed frame from %s: %v", c.UserID(), err)
			continue
		}
		if err := msg.Validate(); err != nil {
			log.Printf("relay: dropping invalid frame from %s: %v", c.UserID(), err)
			continue
		}

		c.hub.inbound <- inboundMessage{conn: c, msg: &msg}
	}
}

// writePump owns all socket writes, including transport-level pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
