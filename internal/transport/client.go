// Package transport maintains one full-duplex WebSocket connection to a
// collaboration relay. It owns framing only: envelopes in, envelopes out,
// plus protocol keepalive. Session semantics live above it.
package transport

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"modcollab/internal/workqueue"
	"modcollab/pkg/types"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
	sendBuffer       = 100
)

// Handler receives transport events. Callbacks are invoked from transport
// goroutines; implementations must not block.
type Handler interface {
	OnConnected()
	OnMessage(msg *types.WireMessage)
	OnDisconnected(err error)
}

// Client is the plugin side of the wire protocol. One Client serves at most
// one live connection; after Close a fresh Connect opens a new one. Each
// connect attempt is independent and user-triggered, there is no automatic
// reconnection.
type Client struct {
	handler Handler
	pool    *workqueue.Pool

	mu      sync.Mutex
	conn    *websocket.Conn
	writeCh chan []byte
	cancel  context.CancelFunc
	userID  string
}

// NewClient creates a disconnected client. The pool handles inbound decoding
// off the read goroutine; pass nil to decode inline.
func NewClient(handler Handler, pool *workqueue.Pool) *Client {
	return &Client{handler: handler, pool: pool}
}

// SetUserID records the local identity stamped onto keepalive pings.
func (c *Client) SetUserID(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// Connect dials the relay. Fails with ErrConnection if the URL is empty or
// invalid or the handshake fails, and ErrAlreadyConnected when a connection
// is live. On success the handler's OnConnected fires before Connect returns.
func (c *Client) Connect(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return ErrConnection
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		log.Printf("transport: invalid relay URL %q", rawURL)
		return ErrConnection
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		log.Printf("transport: dial %s failed: %v", rawURL, err)
		return ErrConnection
	}

	connCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.conn != nil {
		// A concurrent Connect won the race while we were dialing.
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return ErrAlreadyConnected
	}
	c.conn = conn
	c.writeCh = make(chan []byte, sendBuffer)
	c.cancel = cancel
	writeCh := c.writeCh
	c.mu.Unlock()

	go c.writeLoop(connCtx, conn, writeCh)
	go c.pingLoop(connCtx)
	go c.readLoop(conn)

	c.handler.OnConnected()
	return nil
}

// Send queues one envelope for delivery. Never blocks; when disconnected or
// when the write queue is saturated the message is dropped with a logged
// warning, matching the fail-silent send contract.
func (c *Client) Send(msg *types.WireMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("transport: marshal %s message failed: %v", msg.Type, err)
		return
	}

	c.mu.Lock()
	writeCh := c.writeCh
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		log.Printf("transport: not connected, dropping %s message", msg.Type)
		return
	}
	select {
	case writeCh <- data:
	default:
		log.Printf("transport: send queue full, dropping %s message", msg.Type)
	}
}

// IsConnected reports whether a connection is currently live.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close shuts the connection down gracefully. Safe to call twice and safe to
// call while disconnected.
func (c *Client) Close() error {
	conn := c.teardown()
	if conn == nil {
		return nil
	}
	deadline := time.Now().Add(writeTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// teardown detaches the current connection, stopping the write and ping
// loops. Returns nil when already closed.
func (c *Client) teardown() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := c.conn
	if conn == nil {
		return nil
	}
	c.conn = nil
	c.writeCh = nil
	c.cancel()
	c.cancel = nil
	return conn
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn, writeCh chan []byte) {
	for {
		select {
		case data := <-writeCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("transport: write failed: %v", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// pingLoop emits a protocol-level PING every pingInterval while connected.
// Staleness detection is the peer's concern; only emission happens here.
func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			userID := c.userID
			c.mu.Unlock()
			c.Send(types.NewWireMessage(types.MessageTypePing, userID, nil))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("transport: read failed: %v", err)
			}
			c.teardown()
			_ = conn.Close()
			c.handler.OnDisconnected(err)
			return
		}
		c.dispatch(data)
	}
}

// dispatch parses one raw frame and hands it to the handler. Malformed
// payloads are logged and dropped; they never surface as errors.
func (c *Client) dispatch(data []byte) {
	decode := func() {
		var msg types.WireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("transport: dropping malformed frame: %v", err)
			return
		}
		if err := msg.Validate(); err != nil {
			log.Printf("transport: dropping invalid frame: %v", err)
			return
		}
		c.handler.OnMessage(&msg)
	}
	if c.pool == nil {
		decode()
		return
	}
	if err := c.pool.Submit(decode); err != nil {
		log.Printf("transport: decode rejected: %v", err)
	}
}
