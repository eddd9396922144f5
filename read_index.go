package rwsync

// ReadIndex is a scoped handle on one of up to maxReaders reader roles.
// It latches onto whichever cell "latest" names at admission (or
// whenever PullUpdate is next called), and holds a positive
// contribution to that cell's reference count for as long as it stays
// latched.
//
// ReadIndex is not safe for concurrent use by multiple goroutines; it
// is meant to be held by a single reader goroutine.
type ReadIndex struct {
	owner *Manager
	valid bool
	// index is the currently latched cell, or -1 if Valid-empty
	// (admitted, but nothing was published when it last latched) or
	// Invalid.
	index int64
}

// NewReadIndex attempts to check out a reader role on m and, if
// successful, latches onto the current publication (or the
// Valid-empty state if nothing has been published yet).
func NewReadIndex(m *Manager) *ReadIndex {
	r := &ReadIndex{owner: m, index: noLatest}
	r.valid = m.checkoutReader()
	if r.valid {
		r.getLatest()
	}
	return r
}

// Valid reports whether this handle currently holds a reader slot. A
// handle constructed before any publication is Valid (Valid-empty in
// spec terms) but CanRead reports false until it latches onto a
// publication, i.e. until PullUpdate is called after the first publish.
func (r *ReadIndex) Valid() bool {
	return r.valid
}

// CanRead reports whether the handle is admitted AND currently latched
// onto a published cell, i.e. it distinguishes Valid-empty from a true
// latch without forcing the caller to inspect CurrentIndex. A handle
// that became Valid-empty reports false even after a later publish,
// until PullUpdate latches it.
func (r *ReadIndex) CanRead() bool {
	return r.valid && r.index != noLatest
}

// TryToMakeValid attempts to check out a reader role if this handle
// does not already hold one, latching onto the current publication on
// success. It returns the resulting validity.
func (r *ReadIndex) TryToMakeValid() bool {
	if r.valid {
		return true
	}
	r.valid = r.owner.checkoutReader()
	if r.valid {
		r.getLatest()
	}
	return r.valid
}

// CurrentIndex returns the latched slot index. It returns
// ErrInvalidHandle if the handle is Invalid or Valid-empty (nothing has
// been published yet).
func (r *ReadIndex) CurrentIndex() (int, error) {
	if !r.valid || r.index == noLatest {
		return -1, ErrInvalidHandle
	}
	return int(r.index), nil
}

// HasUpdate reports whether a newer publication is available than the
// one currently latched. Even if the publication visible by the time
// the caller acts on this has advanced further still, that is fine:
// the new value cannot be the one already held.
func (r *ReadIndex) HasUpdate() bool {
	if !r.valid {
		return false
	}
	l := r.owner.latest.Load()
	return l != noLatest && l != r.index
}

// PullUpdate releases the currently latched cell (if any) and
// re-latches onto the current publication, but only if HasUpdate is
// true; otherwise it is a no-op. A ReadIndex never holds two latches
// simultaneously.
func (r *ReadIndex) PullUpdate() {
	if !r.valid || !r.HasUpdate() {
		return
	}
	r.finishRead()
	r.getLatest()
}

// Close releases the reader role, and the latched cell if any. A
// ReadIndex must be closed exactly once to free its slot for another
// reader.
func (r *ReadIndex) Close() {
	if r.valid {
		r.finishRead()
		r.owner.returnReader()
		r.valid = false
	}
}

// finishRead signals that this handle is no longer reading its
// currently latched cell, if any.
func (r *ReadIndex) finishRead() {
	if r.index == noLatest {
		return
	}
	cells := *r.owner.refCounts.Load()
	// Seq-cst: paired with the writer's seq-cst store of latest and
	// seq-cst CAS during its scan in pushWrite. This total order is
	// what rules out a reader "occupying two slots": any decrement
	// ordered before the writer's store of latest is visible to the
	// writer's scan; any decrement ordered after it is paired with a
	// getLatest load that is guaranteed to observe the new latest
	// (and therefore never targets a cell the scan will touch).
	old := cells[r.index].Add(-1)
	if old < 0 {
		panic("rwsync: finishRead found a negative reference count")
	}
	r.index = noLatest
}

// getLatest latches onto whichever cell "latest" currently names, or
// leaves the handle Valid-empty if nothing has ever been published.
func (r *ReadIndex) getLatest() {
	// Seq-cst: this load, together with the writer's seq-cst store in
	// pushWrite, is the synchronization point that makes any write to
	// the draft cell prior to PushUpdate visible to this reader once
	// it observes the corresponding index.
	idx := r.owner.latest.Load()
	if idx == noLatest {
		r.index = noLatest
		return
	}
	cells := *r.owner.refCounts.Load()
	for {
		cell := cells[idx]
		observed := cell.Load()
		if observed == draft {
			// idx just became the new writer draft; by invariant I2
			// and the seq-cst ordering in pushWrite, latest must now
			// name a different, valid index.
			idx = r.owner.latest.Load()
			continue
		}
		if cell.CompareAndSwap(observed, observed+1) {
			r.index = idx
			return
		}
	}
}
