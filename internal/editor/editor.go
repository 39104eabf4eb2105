// Package editor binds one open file to a collaboration session. It turns
// local buffer changes into operations for broadcast, applies remote
// operations back onto the buffer, and filters duplicates, echoes and stale
// operations so the two directions cannot feed back into each other.
package editor

import (
	"log"
	"sync"
	"sync/atomic"

	"modcollab/internal/workqueue"
	"modcollab/pkg/operation"
)

// Broadcaster receives locally originated operations for delivery to the
// session. The session manager implements it.
type Broadcaster interface {
	BroadcastOperation(filePath string, op operation.Operation)
}

// Editor is the live binding between one file's buffer and the session.
// Created bound; Dispose ends the binding permanently. Remote applies are
// serialised through a single-consumer queue standing in for the host
// editor's document thread, so callers must not assume an apply has
// completed when ApplyRemote returns.
type Editor struct {
	filePath    string
	buffer      TextBuffer
	localUserID string
	clock       *operation.Clock
	broadcaster Broadcaster
	queue       *workqueue.Serial
	unsubscribe func()

	applying atomic.Bool // suppresses local-change capture during a remote apply
	disposed atomic.Bool

	mu        sync.Mutex
	processed map[string]bool  // operation keys already handled, echo guard
	lastSeen  map[string]int64 // senderID -> newest applied timestamp

	presence sync.Map // userID -> types.CursorState
}

// New binds buffer to the session and starts capturing its changes.
func New(filePath string, buffer TextBuffer, localUserID string, clock *operation.Clock, broadcaster Broadcaster) *Editor {
	e := &Editor{
		filePath:    filePath,
		buffer:      buffer,
		localUserID: localUserID,
		clock:       clock,
		broadcaster: broadcaster,
		queue:       workqueue.NewSerial(0),
		processed:   make(map[string]bool),
		lastSeen:    make(map[string]int64),
	}
	e.unsubscribe = buffer.Subscribe(e.onLocalChange)
	log.Printf("editor: bound %s for user %s", filePath, localUserID)
	return e
}

// FilePath returns the bound file's path.
func (e *Editor) FilePath() string {
	return e.filePath
}

// Buffer returns the bound text buffer.
func (e *Editor) Buffer() TextBuffer {
	return e.buffer
}

// Disposed reports whether the binding has ended.
func (e *Editor) Disposed() bool {
	return e.disposed.Load()
}

// Dispose ends the binding. Pending remote applies become no-ops. Idempotent.
func (e *Editor) Dispose() {
	if !e.disposed.CompareAndSwap(false, true) {
		return
	}
	e.unsubscribe()
	e.queue.Stop()
	log.Printf("editor: disposed %s", e.filePath)
}

// onLocalChange converts a buffer mutation into an operation and hands it to
// the broadcaster. Mutations made by Editor itself while applying a remote
// operation are suppressed, which is the feedback-loop guard.
func (e *Editor) onLocalChange(ev ChangeEvent) {
	if e.applying.Load() || e.disposed.Load() {
		return
	}

	op, ok := classify(ev)
	if !ok {
		return
	}
	op = op.Stamped(e.clock.Next())

	// Record under the local identity so a naive relay echoing the
	// broadcast back does not reapply it.
	e.mu.Lock()
	e.processed[operation.Key(e.localUserID, op.Timestamp)] = true
	e.mu.Unlock()

	e.broadcaster.BroadcastOperation(e.filePath, op)
}

// classify maps the (oldLength, newLength) shape of an event onto one of the
// three operation kinds. Zero-to-zero changes carry no information.
func classify(ev ChangeEvent) (operation.Operation, bool) {
	var (
		op  operation.Operation
		err error
	)
	switch {
	case ev.NewLength > 0 && ev.OldLength == 0:
		op, err = operation.NewInsert(ev.Offset, ev.NewText)
	case ev.NewLength == 0 && ev.OldLength > 0:
		op, err = operation.NewDelete(ev.Offset, ev.OldLength)
	case ev.NewLength > 0 && ev.OldLength > 0:
		op, err = operation.NewReplace(ev.Offset, ev.OldLength, ev.NewText)
	default:
		return operation.Operation{}, false
	}
	if err != nil {
		log.Printf("editor: ignoring unclassifiable change at %d: %v", ev.Offset, err)
		return operation.Operation{}, false
	}
	return op, true
}

// ApplyRemote schedules one remote operation onto the bound buffer.
// Self-originated, already-seen and stale operations are dropped here, on
// the caller's goroutine; the buffer mutation itself runs later on the
// document queue. Only the newest-timestamped operation from each sender is
// trusted; this is last-writer-wins per sender, not causal ordering, and
// concurrent edits at overlapping offsets may interleave either way.
func (e *Editor) ApplyRemote(op operation.Operation, senderID string) {
	if e.disposed.Load() {
		return
	}
	if senderID == e.localUserID {
		return
	}

	key := operation.Key(senderID, op.Timestamp)
	e.mu.Lock()
	if e.processed[key] {
		e.mu.Unlock()
		return
	}
	prevLast := e.lastSeen[senderID]
	if prevLast >= op.Timestamp {
		e.mu.Unlock()
		log.Printf("editor: dropping stale op from %s (ts=%d, last=%d)", senderID, op.Timestamp, prevLast)
		return
	}
	e.processed[key] = true
	e.lastSeen[senderID] = op.Timestamp
	e.mu.Unlock()

	if err := e.queue.Submit(func() { e.apply(op, senderID) }); err != nil {
		// The operation never ran; forget it so a redelivery can still apply.
		e.mu.Lock()
		delete(e.processed, key)
		if e.lastSeen[senderID] == op.Timestamp {
			e.lastSeen[senderID] = prevLast
		}
		e.mu.Unlock()
		log.Printf("editor: could not schedule op from %s on %s: %v", senderID, e.filePath, err)
	}
}

// apply runs on the document queue and performs the actual mutation. Any
// failure is logged and swallowed; the document stays in whatever state the
// buffer produced, with no rollback or resync.
func (e *Editor) apply(op operation.Operation, senderID string) {
	if e.disposed.Load() {
		return
	}

	e.applying.Store(true)
	defer e.applying.Store(false)

	docLen := len(e.buffer.GetText())
	if op.Offset > docLen {
		log.Printf("editor: op from %s out of range on %s (offset=%d len=%d)", senderID, e.filePath, op.Offset, docLen)
		return
	}

	var err error
	switch op.Kind {
	case operation.Insert:
		err = e.buffer.Insert(op.Offset, op.Text)
	case operation.Delete, operation.Replace:
		end := op.Offset + op.Length
		if end > docLen {
			log.Printf("editor: op from %s exceeds document on %s (end=%d len=%d)", senderID, e.filePath, end, docLen)
			return
		}
		if op.Kind == operation.Delete {
			err = e.buffer.Delete(op.Offset, end)
		} else {
			err = e.buffer.Replace(op.Offset, end, op.Text)
		}
	default:
		log.Printf("editor: unknown operation kind %q from %s", op.Kind, senderID)
		return
	}
	if err != nil {
		log.Printf("editor: applying op from %s on %s failed: %v", senderID, e.filePath, err)
	}
}

// SetContent replaces the whole document, used for the initial hand-off when
// a peer pushes FILE_CONTENT. Runs under suppression like any remote apply.
func (e *Editor) SetContent(content string) {
	if e.disposed.Load() {
		return
	}
	err := e.queue.Submit(func() {
		if e.disposed.Load() {
			return
		}
		e.applying.Store(true)
		defer e.applying.Store(false)
		if err := e.buffer.Replace(0, len(e.buffer.GetText()), content); err != nil {
			log.Printf("editor: replacing content of %s failed: %v", e.filePath, err)
		}
	})
	if err != nil {
		log.Printf("editor: could not schedule content replace on %s: %v", e.filePath, err)
	}
}

// Flush blocks until every apply scheduled so far has run. Test hook.
func (e *Editor) Flush() {
	done := make(chan struct{})
	if e.queue.Submit(func() { close(done) }) != nil {
		return
	}
	<-done
}
