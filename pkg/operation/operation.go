// Package operation defines the editor operation value type and its wire
// encoding. An Operation is immutable once constructed; equality for
// de-duplication purposes is the (senderID, timestamp) pair, which callers
// build with Key.
package operation

import (
	"fmt"
	"sync"
	"time"
)

// Kind discriminates the three mutation types.
type Kind string

const (
	Insert  Kind = "INSERT"
	Delete  Kind = "DELETE"
	Replace Kind = "REPLACE"
)

// Operation is one atomic text mutation. Length is 0 for a pure insert.
// Timestamp is sender-local and strictly increasing per sender; there is no
// global clock and conflict resolution relies only on per-sender ordering.
type Operation struct {
	Kind      Kind
	Offset    int
	Length    int
	Text      string
	Timestamp int64
}

// NewInsert builds an insert of text at offset.
func NewInsert(offset int, text string) (Operation, error) {
	if offset < 0 {
		return Operation{}, ErrNegativeOffset
	}
	return Operation{Kind: Insert, Offset: offset, Text: text}, nil
}

// NewDelete builds a delete of length characters starting at offset.
func NewDelete(offset, length int) (Operation, error) {
	if offset < 0 {
		return Operation{}, ErrNegativeOffset
	}
	if length <= 0 {
		return Operation{}, ErrNonPositiveLength
	}
	return Operation{Kind: Delete, Offset: offset, Length: length}, nil
}

// NewReplace builds a replacement of length characters at offset with text.
// An empty replacement text is allowed.
func NewReplace(offset, length int, text string) (Operation, error) {
	if offset < 0 {
		return Operation{}, ErrNegativeOffset
	}
	if length <= 0 {
		return Operation{}, ErrNonPositiveLength
	}
	return Operation{Kind: Replace, Offset: offset, Length: length, Text: text}, nil
}

// Stamped returns a copy carrying the given timestamp.
func (op Operation) Stamped(ts int64) Operation {
	op.Timestamp = ts
	return op
}

// Key is the de-duplication identity of an operation from a given sender.
func Key(senderID string, timestamp int64) string {
	return fmt.Sprintf("%s:%d", senderID, timestamp)
}

// Encode produces the wire representation used inside an OPERATION envelope.
func (op Operation) Encode() map[string]any {
	return map[string]any{
		"type":      string(op.Kind),
		"offset":    op.Offset,
		"length":    op.Length,
		"text":      op.Text,
		"timestamp": op.Timestamp,
	}
}

// Decode parses a wire map back into an Operation. Numbers may arrive as
// float64 (JSON) or as Go ints (in-process round trip); both are accepted.
// Any unknown kind or missing/mistyped field yields ErrMalformedOperation.
func Decode(m map[string]any) (Operation, error) {
	kindStr, ok := m["type"].(string)
	if !ok {
		return Operation{}, fmt.Errorf("%w: missing type", ErrMalformedOperation)
	}
	kind := Kind(kindStr)
	switch kind {
	case Insert, Delete, Replace:
	default:
		return Operation{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedOperation, kindStr)
	}

	offset, ok := intField(m, "offset")
	if !ok || offset < 0 {
		return Operation{}, fmt.Errorf("%w: bad offset", ErrMalformedOperation)
	}
	length, ok := intField(m, "length")
	if !ok || length < 0 {
		return Operation{}, fmt.Errorf("%w: bad length", ErrMalformedOperation)
	}
	if kind != Insert && length == 0 {
		return Operation{}, fmt.Errorf("%w: %s requires positive length", ErrMalformedOperation, kind)
	}

	text := ""
	if v, present := m["text"]; present {
		text, ok = v.(string)
		if !ok {
			return Operation{}, fmt.Errorf("%w: bad text", ErrMalformedOperation)
		}
	}

	ts, ok := int64Field(m, "timestamp")
	if !ok {
		return Operation{}, fmt.Errorf("%w: bad timestamp", ErrMalformedOperation)
	}

	return Operation{Kind: kind, Offset: offset, Length: length, Text: text, Timestamp: ts}, nil
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func int64Field(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Clock issues strictly increasing sender-local timestamps. Wall-clock
// millis, bumped by one whenever two stamps land in the same millisecond.
type Clock struct {
	mu   sync.Mutex
	last int64
}

// Next returns the next timestamp. Safe for concurrent use.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}
