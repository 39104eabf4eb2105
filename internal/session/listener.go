package session

import (
	"modcollab/pkg/operation"
	"modcollab/pkg/types"
)

// Listener observes session lifecycle and traffic. The UI layer subscribes
// here so the manager never depends on UI types. Callbacks fire on manager
// goroutines and must return quickly.
type Listener interface {
	OnSessionStarted(sessionID string)
	OnSessionJoined(sessionID string)
	OnSessionLeft(sessionID string)
	OnParticipantJoined(p types.Participant)
	OnParticipantLeft(p types.Participant)
	OnOperationReceived(filePath string, op operation.Operation, senderID string)
	OnError(message string)
}

// NoopListener implements Listener with empty methods, for embedding.
type NoopListener struct{}

func (NoopListener) OnSessionStarted(string) {}

func (NoopListener) OnSessionJoined(string) {}

func (NoopListener) OnSessionLeft(string) {}

func (NoopListener) OnParticipantJoined(types.Participant) {}

func (NoopListener) OnParticipantLeft(types.Participant) {}

func (NoopListener) OnOperationReceived(string, operation.Operation, string) {}

func (NoopListener) OnError(string) {}
