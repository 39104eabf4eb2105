package editor

import "modcollab/pkg/types"

// UpdateCursor records a participant's latest caret and selection. Presence
// is presentation-only; the newest received value always replaces the old
// one regardless of timestamps.
func (e *Editor) UpdateCursor(state types.CursorState) {
	if e.disposed.Load() {
		return
	}
	e.presence.Store(state.UserID, state)
}

// Cursor returns the last known cursor state for a participant.
func (e *Editor) Cursor(userID string) (types.CursorState, bool) {
	v, ok := e.presence.Load(userID)
	if !ok {
		return types.CursorState{}, false
	}
	return v.(types.CursorState), true
}

// ClearCursor drops presence for a participant, typically on leave.
func (e *Editor) ClearCursor(userID string) {
	e.presence.Delete(userID)
}

// Cursors returns a snapshot of all known cursor states.
func (e *Editor) Cursors() []types.CursorState {
	var out []types.CursorState
	e.presence.Range(func(_, v any) bool {
		out = append(out, v.(types.CursorState))
		return true
	})
	return out
}
