package relay

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   4096,
	WriteBufferSize:  4096,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// The relay authenticates nothing yet; origin checking belongs to
		// the deployment in front of it.
		return true
	},
}

// Handler upgrades HTTP requests to relay connections.
type Handler struct {
	hub *Hub
}

// NewHandler creates the WebSocket endpoint handler for a hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeHTTP upgrades the request and starts the connection's pumps. Session
// membership is established by the first JOIN envelope, not by query
// parameters, so the upgrade itself is unconditional.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay: upgrade failed: %v", err)
		return
	}

	c := newConn(h.hub, ws)
	h.hub.register <- c

	go c.writePump()
	go c.readPump()
}
