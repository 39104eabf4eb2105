// Package router decodes inbound wire envelopes and dispatches each one to
// exactly one handler. Decode failures, unknown types and missing payload
// fields are logged and dropped here; nothing ever propagates past the
// router as a panic or error.
package router

import (
	"log"

	"modcollab/pkg/operation"
	"modcollab/pkg/types"
)

// Handlers is the dispatch target, implemented by the session manager.
type Handlers interface {
	HandleJoin(senderID, sessionID, username, hostUserID string)
	HandleLeave(senderID, username string)
	HandleOperation(senderID, filePath string, op operation.Operation, cursor *types.CursorState)
	HandleFileContent(senderID, filePath, fileName, content string)
	HandleFileSync(senderID, filePath, fileName string)
	HandlePing(senderID string)
	HandleError(senderID, message string)
}

// Router dispatches one message at a time. Stateless; safe for concurrent use
// as long as the handlers are.
type Router struct {
	handlers Handlers
}

// New creates a router for the given handlers.
func New(h Handlers) *Router {
	return &Router{handlers: h}
}

// Route validates and dispatches a single envelope.
func (r *Router) Route(msg *types.WireMessage) {
	if msg == nil {
		return
	}
	if err := msg.Validate(); err != nil {
		log.Printf("router: dropping message: %v", err)
		return
	}

	switch msg.Type {
	case types.MessageTypeJoin:
		r.routeJoin(msg)
	case types.MessageTypeLeave:
		r.routeLeave(msg)
	case types.MessageTypeOperation:
		r.routeOperation(msg)
	case types.MessageTypeFileContent:
		r.routeFileContent(msg)
	case types.MessageTypeFileSync:
		r.routeFileSync(msg)
	case types.MessageTypePing:
		r.handlers.HandlePing(msg.UserID)
	case types.MessageTypePong:
		// Keepalive reply; traffic itself is the signal, nothing to do.
	case types.MessageTypeError:
		message, _ := msg.StringField("message")
		r.handlers.HandleError(msg.UserID, message)
	default:
		log.Printf("router: dropping message with unknown type %q", msg.Type)
	}
}

func (r *Router) routeJoin(msg *types.WireMessage) {
	sessionID, ok := msg.StringField("sessionId")
	if !ok {
		log.Printf("router: JOIN from %s without sessionId, dropped", msg.UserID)
		return
	}
	username, _ := msg.StringField("username")
	// The relay stamps the room host onto every JOIN it delivers; a JOIN
	// straight from a peer has no say in the matter.
	hostUserID, _ := msg.StringField("hostUserId")
	r.handlers.HandleJoin(msg.UserID, sessionID, username, hostUserID)
}

func (r *Router) routeLeave(msg *types.WireMessage) {
	username, _ := msg.StringField("username")
	r.handlers.HandleLeave(msg.UserID, username)
}

func (r *Router) routeOperation(msg *types.WireMessage) {
	filePath, ok := msg.StringField("filePath")
	if !ok {
		log.Printf("router: OPERATION from %s without filePath, dropped", msg.UserID)
		return
	}
	opMap, ok := msg.MapField("operation")
	if !ok {
		log.Printf("router: OPERATION from %s without operation payload, dropped", msg.UserID)
		return
	}
	op, err := operation.Decode(opMap)
	if err != nil {
		log.Printf("router: OPERATION from %s undecodable, dropped: %v", msg.UserID, err)
		return
	}
	r.handlers.HandleOperation(msg.UserID, filePath, op, decodeCursor(msg))
}

// decodeCursor pulls the optional presence piggyback off an OPERATION. A
// malformed cursor never blocks the operation itself.
func decodeCursor(msg *types.WireMessage) *types.CursorState {
	c, ok := msg.MapField("cursor")
	if !ok {
		return nil
	}
	state := &types.CursorState{UserID: msg.UserID}
	if v, ok := c["offset"].(float64); ok {
		state.Offset = int(v)
	} else if v, ok := c["offset"].(int); ok {
		state.Offset = v
	}
	if v, ok := c["selectionStart"].(float64); ok {
		state.SelectionStart = int(v)
	} else if v, ok := c["selectionStart"].(int); ok {
		state.SelectionStart = v
	}
	if v, ok := c["selectionEnd"].(float64); ok {
		state.SelectionEnd = int(v)
	} else if v, ok := c["selectionEnd"].(int); ok {
		state.SelectionEnd = v
	}
	return state
}

func (r *Router) routeFileContent(msg *types.WireMessage) {
	filePath, ok := msg.StringField("filePath")
	if !ok {
		log.Printf("router: FILE_CONTENT from %s without filePath, dropped", msg.UserID)
		return
	}
	content, ok := msg.StringField("content")
	if !ok {
		log.Printf("router: FILE_CONTENT from %s without content, dropped", msg.UserID)
		return
	}
	fileName, _ := msg.StringField("fileName")
	r.handlers.HandleFileContent(msg.UserID, filePath, fileName, content)
}

func (r *Router) routeFileSync(msg *types.WireMessage) {
	filePath, ok := msg.StringField("filePath")
	if !ok {
		log.Printf("router: FILE_SYNC from %s without filePath, dropped", msg.UserID)
		return
	}
	fileName, _ := msg.StringField("fileName")
	r.handlers.HandleFileSync(msg.UserID, filePath, fileName)
}
