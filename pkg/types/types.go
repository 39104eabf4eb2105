package types

import (
	"time"
)

// Wire message types. Every frame exchanged with the relay carries exactly
// one of these in its "type" field.
const (
	// MessageTypeJoin announces a participant entering a session.
	// Data: { sessionId, username }
	MessageTypeJoin = "JOIN"

	// MessageTypeLeave announces a participant leaving a session.
	// Data: { sessionId, username }
	MessageTypeLeave = "LEAVE"

	// MessageTypeOperation carries one editor operation.
	// Data: { filePath, operation: { type, offset, length?, text?, timestamp } }
	MessageTypeOperation = "OPERATION"

	// MessageTypeFileContent delivers the full text of a file.
	// Data: { filePath, fileName, content }
	MessageTypeFileContent = "FILE_CONTENT"

	// MessageTypeFileSync requests the current content of a file.
	// Data: { filePath, fileName }
	MessageTypeFileSync = "FILE_SYNC"

	// MessageTypePing and MessageTypePong are the keepalive pair.
	MessageTypePing = "PING"
	MessageTypePong = "PONG"

	// MessageTypeError reports a server-side failure.
	// Data: { message }
	MessageTypeError = "ERROR"
)

// Session identifies one collaboration room. Immutable after creation;
// derived state (roster, bindings) lives elsewhere and dies with the session.
type Session struct {
	ID         string    `json:"id"`
	HostUserID string    `json:"hostUserId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Participant is one connected user identity within a session.
type Participant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
}

// CursorState is best-effort presence for one participant. It carries no
// consistency guarantee; the newest received value always wins.
type CursorState struct {
	UserID         string `json:"userId"`
	Offset         int    `json:"offset"`
	SelectionStart int    `json:"selectionStart"`
	SelectionEnd   int    `json:"selectionEnd"`
}

// WireMessage is the JSON envelope used on the WebSocket. Transient only:
// never persisted as session state, exists on the wire and in queues.
type WireMessage struct {
	Type   string         `json:"type"`
	UserID string         `json:"userId"`
	Data   map[string]any `json:"data,omitempty"`
}

// NewWireMessage builds an envelope with its own copy-safe data map.
func NewWireMessage(msgType, userID string, data map[string]any) *WireMessage {
	if data == nil {
		data = map[string]any{}
	}
	return &WireMessage{Type: msgType, UserID: userID, Data: data}
}

// StringField returns a string-typed entry from the data map.
func (m *WireMessage) StringField(key string) (string, bool) {
	if m.Data == nil {
		return "", false
	}
	v, ok := m.Data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MapField returns a nested map entry from the data map.
func (m *WireMessage) MapField(key string) (map[string]any, bool) {
	if m.Data == nil {
		return nil, false
	}
	v, ok := m.Data[key]
	if !ok {
		return nil, false
	}
	mp, ok := v.(map[string]any)
	return mp, ok
}
