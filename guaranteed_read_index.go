package rwsync

// NewGuaranteedReadIndex constructs a ReadIndex that is always Valid:
// on each failed admission attempt it grows m by one reader slot and
// retries, rather than returning an Invalid handle to the caller.
//
// It blocks only on the resize mutex (via EnsureSpaceForReaders), which
// is never held across any fast-path operation, so the wait is
// bounded. The handle may still be Valid-empty if nothing has been
// published yet; check CanRead before dereferencing.
func NewGuaranteedReadIndex(m *Manager) *ReadIndex {
	r := &ReadIndex{owner: m, index: noLatest}
	for {
		if r.valid = m.checkoutReader(); r.valid {
			r.getLatest()
			return r
		}
		m.EnsureSpaceForReaders(m.GetMaxReaders() + 1)
	}
}
