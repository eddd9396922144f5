package rwsync

// WriteIndex is a scoped handle on the single writer role. Constructing
// a second WriteIndex against a Manager that already has one live
// yields an Invalid handle rather than an error — callers must check
// Valid() (or tolerate CurrentIndex returning ErrInvalidHandle).
//
// WriteIndex is not safe for concurrent use by multiple goroutines; it
// is meant to be held by the single goroutine acting as writer.
type WriteIndex struct {
	owner *Manager
	valid bool
}

// NewWriteIndex attempts to check out the writer role on m.
func NewWriteIndex(m *Manager) *WriteIndex {
	return &WriteIndex{owner: m, valid: m.checkoutWriter()}
}

// Valid reports whether this handle currently owns the writer role.
func (w *WriteIndex) Valid() bool {
	return w.valid
}

// TryToMakeValid attempts to check out the writer role if this handle
// does not already hold it. It returns the resulting validity.
func (w *WriteIndex) TryToMakeValid() bool {
	if w.valid {
		return true
	}
	w.valid = w.owner.checkoutWriter()
	return w.valid
}

// CurrentIndex returns the slot index the caller should write to. It
// is stable across any number of writes until the next PushUpdate. If
// the handle is not valid, it returns ErrInvalidHandle.
func (w *WriteIndex) CurrentIndex() (int, error) {
	if !w.valid {
		return -1, ErrInvalidHandle
	}
	return int(w.owner.writerIndex), nil
}

// PushUpdate publishes the data at CurrentIndex as the new latest
// snapshot and advances to a freshly claimed draft cell. It is a no-op
// if the handle is not valid.
func (w *WriteIndex) PushUpdate() {
	if !w.valid {
		return
	}
	w.owner.pushWrite()
}

// Close releases the writer role if held. A WriteIndex must be closed
// exactly once (directly or via defer) to let another writer, or a
// Lockout, be admitted.
func (w *WriteIndex) Close() {
	if w.valid {
		w.owner.returnWriter()
		w.valid = false
	}
}
