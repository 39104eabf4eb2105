// Package history records the envelopes a relay saw, per session, into
// sqlite. Recording is an opt-in audit trail for debugging session traffic:
// it is written fire-and-forget and never read back into live state, so the
// collaboration core stays fully ephemeral whether or not recording is on.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"modcollab/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS envelopes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	msg_type    TEXT NOT NULL,
	sender_id   TEXT NOT NULL,
	payload     TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_envelopes_session ON envelopes(session_id, recorded_at);
`

// Recorder writes session traffic to a sqlite file. Writes funnel through a
// single goroutine, which is how sqlite wants to be written to.
type Recorder struct {
	db      *sql.DB
	writeCh chan record
	done    chan struct{}
	once    sync.Once
}

type record struct {
	sessionID string
	msgType   string
	senderID  string
	payload   string
	at        time.Time
}

// NewRecorder opens (or creates) the transcript database at path.
func NewRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init transcript schema: %w", err)
	}

	r := &Recorder{
		db:      db,
		writeCh: make(chan record, 512),
		done:    make(chan struct{}),
	}
	go r.writeLoop()
	return r, nil
}

// Record implements relay.Recorder. Never blocks the caller; when the write
// queue is full the entry is dropped with a logged warning, because the
// transcript must never backpressure live traffic.
func (r *Recorder) Record(sessionID string, msg *types.WireMessage) {
	payload, err := json.Marshal(msg.Data)
	if err != nil {
		log.Printf("history: marshal payload failed: %v", err)
		return
	}
	rec := record{
		sessionID: sessionID,
		msgType:   msg.Type,
		senderID:  msg.UserID,
		payload:   string(payload),
		at:        time.Now(),
	}
	select {
	case r.writeCh <- rec:
	default:
		log.Printf("history: write queue full, dropping %s entry", msg.Type)
	}
}

func (r *Recorder) writeLoop() {
	defer close(r.done)
	for rec := range r.writeCh {
		_, err := r.db.Exec(
			`INSERT INTO envelopes (session_id, msg_type, sender_id, payload, recorded_at) VALUES (?, ?, ?, ?, ?)`,
			rec.sessionID, rec.msgType, rec.senderID, rec.payload, rec.at,
		)
		if err != nil {
			log.Printf("history: insert failed: %v", err)
		}
	}
}

// Count returns the number of recorded envelopes for a session.
func (r *Recorder) Count(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM envelopes WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transcript entries: %w", err)
	}
	return n, nil
}

// Close drains pending writes and closes the database. Idempotent.
func (r *Recorder) Close() error {
	var err error
	r.once.Do(func() {
		close(r.writeCh)
		<-r.done
		err = r.db.Close()
	})
	return err
}
