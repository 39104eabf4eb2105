// Package session owns session identity, the participant roster, the
// transport connection, and the routing of inbound messages to the right
// per-file editor. One Manager represents one connected client; multiple
// managers can coexist in a process, there is no package-level state.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"modcollab/internal/editor"
	"modcollab/internal/router"
	"modcollab/pkg/operation"
	"modcollab/pkg/types"
)

const joinTimeout = 10 * time.Second

// Transport is the connection the manager drives. transport.Client
// implements it; tests substitute a fake.
type Transport interface {
	Connect(ctx context.Context, url string) error
	Send(msg *types.WireMessage)
	Close() error
	IsConnected() bool
	SetUserID(userID string)
}

// BufferProvider opens a text buffer for a file path, used when a peer
// pushes content for a file this client has not opened yet. The host editor
// layer provides it; a nil provider means such pushes are logged and dropped.
type BufferProvider interface {
	OpenBuffer(filePath string) (editor.TextBuffer, error)
}

// Manager is the single authority for "what session am I in and who else is
// in it". All externally visible actions funnel through the Listener
// interface so the UI can react without the manager knowing about it.
type Manager struct {
	serverURL string
	transport Transport
	provider  BufferProvider
	routes    *router.Router
	clock     operation.Clock

	mu          sync.RWMutex
	session     *types.Session
	localUserID string
	username    string
	isHost      bool
	roster      map[string]types.Participant
	editors     map[string]*editor.Editor
	activeFile  string
	joinAck     chan struct{}
	joinOnce    *sync.Once

	lmu       sync.RWMutex
	listeners []Listener
}

// NewManager creates a manager that will connect to serverURL. The transport
// is injected so the manager can be exercised without a network; wire it to
// a transport.Client in production.
func NewManager(serverURL string, t Transport, provider BufferProvider) *Manager {
	m := &Manager{
		serverURL: serverURL,
		transport: t,
		provider:  provider,
		roster:    make(map[string]types.Participant),
		editors:   make(map[string]*editor.Editor),
	}
	m.routes = router.New(m)
	return m
}

// AddListener subscribes a listener to all session events.
func (m *Manager) AddListener(l Listener) {
	m.lmu.Lock()
	m.listeners = append(m.listeners, l)
	m.lmu.Unlock()
}

func (m *Manager) each(fn func(Listener)) {
	m.lmu.RLock()
	ls := make([]Listener, len(m.listeners))
	copy(ls, m.listeners)
	m.lmu.RUnlock()
	for _, l := range ls {
		fn(l)
	}
}

// SessionID returns the active session's ID, or "" when not in a session.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.ID
}

// LocalUserID returns this client's user ID for the active session.
func (m *Manager) LocalUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.localUserID
}

// Participants returns a snapshot of the roster.
func (m *Manager) Participants() []types.Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Participant, 0, len(m.roster))
	for _, p := range m.roster {
		out = append(out, p)
	}
	return out
}

// StartSession creates a new session with this client as host. Fails only
// when a session is already active.
func (m *Manager) StartSession(ctx context.Context, username string) (string, error) {
	if !types.IsValidUsername(username) {
		return "", ErrInvalidUsername
	}

	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return "", ErrAlreadyInSession
	}
	sess := &types.Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
	userID := uuid.New().String()
	sess.HostUserID = userID
	m.session = sess
	m.localUserID = userID
	m.username = username
	m.isHost = true
	m.roster[userID] = types.Participant{UserID: userID, DisplayName: username, IsHost: true}
	m.mu.Unlock()

	m.transport.SetUserID(userID)
	if err := m.transport.Connect(ctx, m.serverURL); err != nil {
		m.clearState()
		return "", err
	}

	m.sendJoin(sess.ID, username)
	log.Printf("session: started %s as host %s (%s)", sess.ID, username, userID)
	m.each(func(l Listener) { l.OnSessionStarted(sess.ID) })
	return sess.ID, nil
}

// JoinSession joins an existing session as a guest. Returns false rather
// than an error on failure so callers can retry or surface a message; the
// only hard precondition is not already being in a session.
func (m *Manager) JoinSession(ctx context.Context, sessionID, username string) bool {
	if !types.IsValidUserID(sessionID) || !types.IsValidUsername(username) {
		log.Printf("session: rejecting join, invalid session id or username")
		return false
	}

	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		log.Printf("session: already in session %s, leave before joining", m.session.ID)
		return false
	}
	userID := uuid.New().String()
	m.session = &types.Session{ID: sessionID, CreatedAt: time.Now()}
	m.localUserID = userID
	m.username = username
	m.isHost = false
	m.roster[userID] = types.Participant{UserID: userID, DisplayName: username}
	ack := make(chan struct{})
	m.joinAck = ack
	m.joinOnce = &sync.Once{}
	m.mu.Unlock()

	m.transport.SetUserID(userID)
	if err := m.transport.Connect(ctx, m.serverURL); err != nil {
		m.clearState()
		return false
	}

	m.sendJoin(sessionID, username)

	// The relay acknowledges a join by echoing it back to the joiner.
	select {
	case <-ack:
	case <-time.After(joinTimeout):
		log.Printf("session: join %s not acknowledged", sessionID)
		_ = m.transport.Close()
		m.clearState()
		return false
	case <-ctx.Done():
		_ = m.transport.Close()
		m.clearState()
		return false
	}

	log.Printf("session: joined %s as %s (%s)", sessionID, username, userID)
	m.each(func(l Listener) { l.OnSessionJoined(sessionID) })
	return true
}

// LeaveSession leaves the current session. The departure notice is
// best-effort; local state is always cleared and OnSessionLeft always fires,
// even when the send failed or the transport is already gone.
func (m *Manager) LeaveSession() {
	m.mu.RLock()
	sess := m.session
	username := m.username
	isHost := m.isHost
	hostID := ""
	if sess != nil {
		hostID = sess.HostUserID
	}
	m.mu.RUnlock()

	if sess == nil {
		return
	}

	data := map[string]any{"sessionId": sess.ID, "username": username}
	if isHost {
		// Host departure ends the session for everyone; tell them all.
		m.Broadcast(types.MessageTypeLeave, data)
	} else if hostID != "" {
		m.SendTo(hostID, types.MessageTypeLeave, data)
	} else {
		m.Broadcast(types.MessageTypeLeave, data)
	}

	if err := m.transport.Close(); err != nil {
		log.Printf("session: transport close failed: %v", err)
	}
	m.clearState()
	log.Printf("session: left %s", sess.ID)
	m.each(func(l Listener) { l.OnSessionLeft(sess.ID) })
}

// Broadcast wraps data in an envelope and sends it to the whole session.
func (m *Manager) Broadcast(msgType string, data map[string]any) {
	m.mu.RLock()
	userID := m.localUserID
	m.mu.RUnlock()
	m.transport.Send(types.NewWireMessage(msgType, userID, data))
}

// SendTo sends an envelope addressed to a single participant. An unknown
// target is a logged no-op.
func (m *Manager) SendTo(targetUserID, msgType string, data map[string]any) {
	m.mu.RLock()
	_, known := m.roster[targetUserID]
	userID := m.localUserID
	m.mu.RUnlock()

	if !known {
		log.Printf("session: dropping %s message to unknown user %s", msgType, targetUserID)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["targetUserId"] = targetUserID
	m.transport.Send(types.NewWireMessage(msgType, userID, data))
}

// OpenFile binds a buffer into the session and makes it the active file.
// Bindings are created lazily, the first time a file participates.
func (m *Manager) OpenFile(filePath string, buffer editor.TextBuffer) *editor.Editor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ed, ok := m.editors[filePath]; ok && !ed.Disposed() {
		m.activeFile = filePath
		return ed
	}
	ed := editor.New(filePath, buffer, m.localUserID, &m.clock, m)
	m.editors[filePath] = ed
	m.activeFile = filePath
	return ed
}

// CloseFile ends the binding for a file.
func (m *Manager) CloseFile(filePath string) {
	m.mu.Lock()
	ed, ok := m.editors[filePath]
	if ok {
		delete(m.editors, filePath)
	}
	if m.activeFile == filePath {
		m.activeFile = ""
	}
	m.mu.Unlock()
	if ok {
		ed.Dispose()
	}
}

// Editor returns the binding for a file, if one exists.
func (m *Manager) Editor(filePath string) (*editor.Editor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ed, ok := m.editors[filePath]
	return ed, ok
}

// BroadcastOperation implements editor.Broadcaster: a locally captured
// operation goes out to the session as an OPERATION envelope.
func (m *Manager) BroadcastOperation(filePath string, op operation.Operation) {
	m.Broadcast(types.MessageTypeOperation, map[string]any{
		"filePath":  filePath,
		"operation": op.Encode(),
	})
}

func (m *Manager) sendJoin(sessionID, username string) {
	m.Broadcast(types.MessageTypeJoin, map[string]any{
		"sessionId": sessionID,
		"username":  username,
	})
}

// clearState drops session, roster and bindings. Editors are disposed so
// in-flight applies become no-ops instead of mutating stale buffers.
func (m *Manager) clearState() {
	m.mu.Lock()
	eds := m.editors
	m.session = nil
	m.localUserID = ""
	m.username = ""
	m.isHost = false
	m.roster = make(map[string]types.Participant)
	m.editors = make(map[string]*editor.Editor)
	m.activeFile = ""
	m.joinAck = nil
	m.joinOnce = nil
	m.mu.Unlock()

	for _, ed := range eds {
		ed.Dispose()
	}
}

// --- transport.Handler ---

// OnConnected implements transport.Handler.
func (m *Manager) OnConnected() {
	log.Printf("session: connected to %s", m.serverURL)
}

// OnMessage implements transport.Handler: every inbound envelope goes
// through the router, which never lets a bad payload escape.
func (m *Manager) OnMessage(msg *types.WireMessage) {
	m.routes.Route(msg)
}

// OnDisconnected implements transport.Handler. A dropped transport destroys
// the session and all derived state; reconnecting is a user-triggered fresh
// start surfaced through the listeners.
func (m *Manager) OnDisconnected(err error) {
	m.mu.RLock()
	sess := m.session
	m.mu.RUnlock()
	if sess == nil {
		return
	}
	log.Printf("session: disconnected from %s: %v", sess.ID, err)
	m.clearState()
	m.each(func(l Listener) {
		l.OnError("disconnected from collaboration session")
		l.OnSessionLeft(sess.ID)
	})
}

// --- router.Handlers ---

// HandleJoin processes a JOIN. The echo of this client's own join serves as
// the relay's acknowledgement; anything else is participant churn. The relay
// names the room host on every JOIN it delivers, which is the only way a
// guest ever learns who the host is.
func (m *Manager) HandleJoin(senderID, sessionID, username, hostUserID string) {
	m.mu.Lock()
	if m.session != nil && m.session.ID == sessionID && hostUserID != "" && m.session.HostUserID == "" {
		m.session.HostUserID = hostUserID
		if p, ok := m.roster[hostUserID]; ok && !p.IsHost {
			p.IsHost = true
			m.roster[hostUserID] = p
		}
	}
	if senderID == m.localUserID {
		if m.joinOnce != nil {
			ack := m.joinAck
			m.joinOnce.Do(func() { close(ack) })
		}
		m.mu.Unlock()
		return
	}
	sess := m.session
	if sess == nil || sess.ID != sessionID {
		m.mu.Unlock()
		log.Printf("session: ignoring join for foreign session %s", sessionID)
		return
	}
	if _, exists := m.roster[senderID]; exists {
		m.mu.Unlock()
		return // duplicate join, idempotent
	}
	isHost := sess.HostUserID == senderID
	p := types.Participant{UserID: senderID, DisplayName: username, IsHost: isHost}
	m.roster[senderID] = p
	activeFile := m.activeFile
	ed := m.editors[activeFile]
	m.mu.Unlock()

	log.Printf("session: %s (%s) joined %s", username, senderID, sessionID)
	m.each(func(l Listener) { l.OnParticipantJoined(p) })

	// Push the active file to the newcomer so they start from current text.
	if activeFile != "" && ed != nil && !ed.Disposed() {
		m.SendTo(senderID, types.MessageTypeFileContent, map[string]any{
			"filePath": activeFile,
			"fileName": baseName(activeFile),
			"content":  ed.Buffer().GetText(),
		})
	}
}

// HandleLeave removes a participant. A leave from the host ends the session.
func (m *Manager) HandleLeave(senderID, username string) {
	m.mu.Lock()
	p, exists := m.roster[senderID]
	if exists {
		delete(m.roster, senderID)
	}
	hostLeft := m.session != nil && m.session.HostUserID == senderID && senderID != m.localUserID
	eds := make([]*editor.Editor, 0, len(m.editors))
	for _, ed := range m.editors {
		eds = append(eds, ed)
	}
	m.mu.Unlock()

	if !exists {
		return
	}
	for _, ed := range eds {
		ed.ClearCursor(senderID)
	}
	log.Printf("session: %s (%s) left", username, senderID)
	m.each(func(l Listener) { l.OnParticipantLeft(p) })

	if hostLeft {
		log.Printf("session: host left, ending session")
		m.LeaveSession()
	}
}

// HandleOperation routes a remote operation to the matching binding. The
// editor performs self-filtering and the per-sender stale drop.
func (m *Manager) HandleOperation(senderID, filePath string, op operation.Operation, cursor *types.CursorState) {
	m.mu.RLock()
	ed, ok := m.editors[filePath]
	m.mu.RUnlock()
	if !ok {
		log.Printf("session: operation for unbound file %s from %s", filePath, senderID)
		return
	}
	ed.ApplyRemote(op, senderID)
	if cursor != nil {
		c := *cursor
		c.UserID = senderID
		ed.UpdateCursor(c)
	}
	m.each(func(l Listener) { l.OnOperationReceived(filePath, op, senderID) })
}

// HandleFileContent applies a full-content push, opening a buffer through
// the provider when this client has not bound the file yet.
func (m *Manager) HandleFileContent(senderID, filePath, fileName, content string) {
	if senderID == m.LocalUserID() {
		return
	}
	m.mu.RLock()
	ed, ok := m.editors[filePath]
	m.mu.RUnlock()

	if !ok {
		if m.provider == nil {
			log.Printf("session: no buffer provider, dropping content for %s", filePath)
			return
		}
		buffer, err := m.provider.OpenBuffer(filePath)
		if err != nil {
			log.Printf("session: opening buffer for %s failed: %v", filePath, err)
			return
		}
		ed = m.OpenFile(filePath, buffer)
	}
	log.Printf("session: received content for %s (%s) from %s", filePath, fileName, senderID)
	ed.SetContent(content)
}

// HandleFileSync answers a content request for a file this client has bound.
func (m *Manager) HandleFileSync(senderID, filePath, fileName string) {
	if senderID == m.LocalUserID() {
		return
	}
	m.mu.RLock()
	ed, ok := m.editors[filePath]
	m.mu.RUnlock()
	if !ok || ed.Disposed() {
		log.Printf("session: sync requested for unbound file %s", filePath)
		return
	}
	m.SendTo(senderID, types.MessageTypeFileContent, map[string]any{
		"filePath": filePath,
		"fileName": fileName,
		"content":  ed.Buffer().GetText(),
	})
}

// HandlePing answers a protocol ping.
func (m *Manager) HandlePing(senderID string) {
	if senderID == m.LocalUserID() {
		return
	}
	m.Broadcast(types.MessageTypePong, nil)
}

// HandleError surfaces a server-reported failure to the listeners.
func (m *Manager) HandleError(senderID, message string) {
	log.Printf("session: error from %s: %s", senderID, message)
	m.each(func(l Listener) { l.OnError(message) })
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
