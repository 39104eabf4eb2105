// Package relay implements the collaboration server endpoint. It keeps one
// room per session, relays envelopes between the room's members, and closes
// the room when the host goes away. Rooms are purely in-memory; nothing
// about them survives a restart.
package relay

import (
	"context"
	"log"
	"sync"
	"time"

	"modcollab/pkg/types"
)

// Recorder receives a copy of every envelope a room handles. The history
// package implements it; nil disables recording.
type Recorder interface {
	Record(sessionID string, msg *types.WireMessage)
}

// RoomInfo is a read-only snapshot of one room, for the inspection API.
type RoomInfo struct {
	SessionID    string              `json:"sessionId"`
	HostUserID   string              `json:"hostUserId"`
	CreatedAt    time.Time           `json:"createdAt"`
	Participants []types.Participant `json:"participants"`
}

type room struct {
	sessionID string
	hostID    string
	createdAt time.Time
	members   map[string]*Conn // userID -> connection
}

type inboundMessage struct {
	conn *Conn
	msg  *types.WireMessage
}

// Hub coordinates all rooms through a single processing goroutine, so room
// state needs no locking of its own. The rooms map is mirrored behind a
// read lock only for snapshot queries.
type Hub struct {
	inbound    chan inboundMessage
	register   chan *Conn
	unregister chan *Conn
	shutdown   chan struct{}
	done       chan struct{}

	recorder Recorder

	mu      sync.RWMutex
	rooms   map[string]*room
	running bool
}

// NewHub creates a hub. recorder may be nil.
func NewHub(recorder Recorder) *Hub {
	return &Hub{
		inbound:    make(chan inboundMessage, 1024),
		register:   make(chan *Conn, 64),
		unregister: make(chan *Conn, 64),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		recorder:   recorder,
		rooms:      make(map[string]*room),
	}
}

// Start begins hub processing. Fails when already running.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Println("relay: hub started")
	go h.run(ctx)
	return nil
}

// Stop shuts the hub down and waits for the processing goroutine to finish,
// so nothing touches the recorder after Stop returns. Idempotent.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.shutdown)
	h.mu.Unlock()
	<-h.done
}

// Rooms returns snapshots of all live rooms.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RoomInfo, 0, len(h.rooms))
	for _, rm := range h.rooms {
		out = append(out, snapshot(rm))
	}
	return out
}

// Room returns the snapshot of one room.
func (h *Hub) Room(sessionID string) (RoomInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rm, ok := h.rooms[sessionID]
	if !ok {
		return RoomInfo{}, false
	}
	return snapshot(rm), true
}

func snapshot(rm *room) RoomInfo {
	info := RoomInfo{
		SessionID:  rm.sessionID,
		HostUserID: rm.hostID,
		CreatedAt:  rm.createdAt,
	}
	for _, c := range rm.members {
		info.Participants = append(info.Participants, types.Participant{
			UserID:      c.UserID(),
			DisplayName: c.Username(),
			IsHost:      c.UserID() == rm.hostID,
		})
	}
	return info
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	defer log.Println("relay: hub stopped")
	for {
		select {
		case in := <-h.inbound:
			h.handle(in.conn, in.msg)
		case conn := <-h.register:
			// Connections are tracked per room once they JOIN; until
			// then the pumps keep them alive and nothing else does.
			_ = conn
		case conn := <-h.unregister:
			h.handleDisconnect(conn)
		case <-h.shutdown:
			h.closeAll()
			return
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// handle processes one inbound envelope on the hub goroutine.
func (h *Hub) handle(c *Conn, msg *types.WireMessage) {
	if msg.Type == types.MessageTypeJoin {
		h.handleJoin(c, msg)
		return
	}

	if !c.hasJoined() {
		log.Printf("relay: %s frame before JOIN from %s, dropped", msg.Type, msg.UserID)
		return
	}

	switch msg.Type {
	case types.MessageTypeLeave:
		h.handleLeave(c, msg)
	case types.MessageTypePing:
		c.deliver(types.NewWireMessage(types.MessageTypePong, "relay", nil))
	case types.MessageTypePong:
		// Client replied to a protocol ping; nothing to relay.
	default:
		h.relayMessage(c, msg)
	}
}

// handleJoin attaches a connection to its room, creating the room (and
// making the joiner host) when the session is new. The joiner gets its own
// JOIN echoed back as acknowledgement, then the current roster; everyone
// else learns about the newcomer.
func (h *Hub) handleJoin(c *Conn, msg *types.WireMessage) {
	sessionID, ok := msg.StringField("sessionId")
	if !ok || !types.IsValidUserID(sessionID) {
		log.Printf("relay: JOIN without usable sessionId from %s, dropped", msg.UserID)
		return
	}
	username, _ := msg.StringField("username")

	h.mu.Lock()
	rm, exists := h.rooms[sessionID]
	if !exists {
		rm = &room{
			sessionID: sessionID,
			hostID:    msg.UserID,
			createdAt: time.Now(),
			members:   make(map[string]*Conn),
		}
		h.rooms[sessionID] = rm
		log.Printf("relay: room %s created, host %s", sessionID, msg.UserID)
	}
	if old, dup := rm.members[msg.UserID]; dup && old != c {
		// Same identity reconnecting; drop the stale connection.
		old.close()
	}
	rm.members[msg.UserID] = c
	hostID := rm.hostID
	h.mu.Unlock()

	c.markJoined(msg.UserID, sessionID, username)

	// Clients only learn the host's identity from the relay, so every JOIN
	// the relay emits names it.
	msg.Data["hostUserId"] = hostID
	h.record(sessionID, msg)

	// Acknowledge, then sync the roster to the newcomer.
	c.deliver(msg)
	h.mu.RLock()
	for id, member := range rm.members {
		if id == msg.UserID {
			continue
		}
		c.deliver(types.NewWireMessage(types.MessageTypeJoin, id, map[string]any{
			"sessionId":  sessionID,
			"username":   member.Username(),
			"hostUserId": hostID,
		}))
	}
	h.mu.RUnlock()

	h.broadcast(rm, msg, msg.UserID)
	log.Printf("relay: %s (%s) joined room %s", username, msg.UserID, sessionID)
}

func (h *Hub) handleLeave(c *Conn, msg *types.WireMessage) {
	h.record(c.SessionID(), msg)
	h.detach(c, true)
}

// handleDisconnect runs when a connection's read pump exits for any reason.
// A vanished member is announced as a LEAVE on its behalf.
func (h *Hub) handleDisconnect(c *Conn) {
	if !c.hasJoined() {
		c.close()
		return
	}
	h.detach(c, true)
}

// detach removes a connection from its room. When the departing member is
// the host the room ends: remaining members get the LEAVE and their
// connections are closed.
func (h *Hub) detach(c *Conn, announce bool) {
	sessionID := c.SessionID()
	userID := c.UserID()

	h.mu.Lock()
	rm, ok := h.rooms[sessionID]
	if !ok || rm.members[userID] != c {
		h.mu.Unlock()
		c.close()
		return
	}
	delete(rm.members, userID)
	hostLeft := rm.hostID == userID
	empty := len(rm.members) == 0
	if hostLeft || empty {
		delete(h.rooms, sessionID)
	}
	h.mu.Unlock()

	if announce && !empty {
		leave := types.NewWireMessage(types.MessageTypeLeave, userID, map[string]any{
			"sessionId": sessionID,
			"username":  c.Username(),
		})
		h.record(sessionID, leave)
		h.broadcast(rm, leave, userID)
	}

	c.close()

	if hostLeft && !empty {
		log.Printf("relay: host left, closing room %s", sessionID)
		for _, member := range rm.members {
			member.close()
		}
	} else if empty {
		log.Printf("relay: room %s closed (empty)", sessionID)
	}
}

// relayMessage forwards an envelope. A targetUserId entry in the payload
// narrows delivery to that member; otherwise everyone but the sender gets it.
func (h *Hub) relayMessage(c *Conn, msg *types.WireMessage) {
	h.mu.RLock()
	rm, ok := h.rooms[c.SessionID()]
	h.mu.RUnlock()
	if !ok {
		log.Printf("relay: %s frame for dead room %s, dropped", msg.Type, c.SessionID())
		return
	}

	h.record(c.SessionID(), msg)

	if target, ok := msg.StringField("targetUserId"); ok && target != "" {
		h.mu.RLock()
		member, found := rm.members[target]
		h.mu.RUnlock()
		if !found {
			log.Printf("relay: target %s not in room %s, %s dropped", target, c.SessionID(), msg.Type)
			return
		}
		member.deliver(msg)
		return
	}

	h.broadcast(rm, msg, msg.UserID)
}

func (h *Hub) broadcast(rm *room, msg *types.WireMessage, exceptUserID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, member := range rm.members {
		if id == exceptUserID {
			continue
		}
		member.deliver(msg)
	}
}

func (h *Hub) record(sessionID string, msg *types.WireMessage) {
	if h.recorder == nil || sessionID == "" {
		return
	}
	h.recorder.Record(sessionID, msg)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, rm := range h.rooms {
		for _, member := range rm.members {
			member.close()
		}
		delete(h.rooms, id)
	}
}
