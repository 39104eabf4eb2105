package editor

// ChangeEvent describes one mutation reported by a TextBuffer. OldLength is
// the length of the replaced region, NewLength the length of NewText.
type ChangeEvent struct {
	Offset    int
	OldLength int
	NewLength int
	NewText   string
}

// ChangeListener observes buffer mutations.
type ChangeListener func(ChangeEvent)

// TextBuffer is the document abstraction the host editor provides. Offsets
// index the buffer's text; Delete and Replace take an exclusive end offset.
// Implementations deliver a ChangeEvent to subscribers for every mutation,
// including mutations made through this interface.
type TextBuffer interface {
	GetText() string
	Insert(offset int, text string) error
	Delete(offset, end int) error
	Replace(offset, end int, text string) error

	// Subscribe registers a listener and returns its unsubscribe function.
	Subscribe(fn ChangeListener) func()
}
