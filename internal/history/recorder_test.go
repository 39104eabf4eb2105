package history

import (
	"path/filepath"
	"testing"
	"time"

	"modcollab/pkg/types"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func waitForCount(t *testing.T, r *Recorder, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := r.Count(sessionID)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	n, _ := r.Count(sessionID)
	t.Fatalf("session %s has %d entries, want %d", sessionID, n, want)
}

func TestRecordAndCount(t *testing.T) {
	r := newTestRecorder(t)

	r.Record("sess-1", types.NewWireMessage(types.MessageTypeJoin, "alice", map[string]any{
		"sessionId": "sess-1", "username": "Alice",
	}))
	r.Record("sess-1", types.NewWireMessage(types.MessageTypeOperation, "alice", map[string]any{
		"filePath":  "a.txt",
		"operation": map[string]any{"type": "INSERT", "offset": 0, "length": 0, "text": "x", "timestamp": 1},
	}))
	r.Record("sess-2", types.NewWireMessage(types.MessageTypeJoin, "bob", map[string]any{
		"sessionId": "sess-2", "username": "Bob",
	}))

	waitForCount(t, r, "sess-1", 2)
	waitForCount(t, r, "sess-2", 1)

	if n, err := r.Count("never-seen"); err != nil || n != 0 {
		t.Errorf("Count(never-seen) = %d, %v", n, err)
	}
}

func TestRecordNilData(t *testing.T) {
	r := newTestRecorder(t)

	r.Record("sess-1", types.NewWireMessage(types.MessageTypePing, "alice", nil))
	waitForCount(t, r, "sess-1", 1)
}

func TestCloseDrainsAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.db")
	r, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	for i := 0; i < 50; i++ {
		r.Record("sess-1", types.NewWireMessage(types.MessageTypePing, "alice", nil))
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	// Every queued entry must be on disk after Close returns.
	reopened, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	n, err := reopened.Count("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 50 {
		t.Errorf("count after close = %d, want 50", n)
	}
}
