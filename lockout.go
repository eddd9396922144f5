package rwsync

// Lockout is a scoped, all-or-nothing claim of the writer slot, every
// reader slot, and the resize mutex. It exists to let callers run
// wholesale operations — Reset, or a user-supplied Map over every cell
// — while guaranteeing mutual exclusion against every other reader,
// writer, and resize in progress.
//
// A Lockout must be closed (via Close, or by deferring it) exactly
// once; closing releases whichever locks were actually acquired, in
// reverse order.
type Lockout struct {
	owner       *Manager
	hasReadLock bool
	hasWriteLock bool
}

// NewLockout attempts to acquire, in order: all reader slots (which
// also takes the resize mutex), then the writer slot. Call Valid to
// check whether both succeeded before relying on exclusive access.
// Whether or not it succeeds, the returned Lockout must be closed.
func NewLockout(m *Manager) *Lockout {
	lo := &Lockout{owner: m}
	lo.hasReadLock = m.checkoutAllReaders()
	if lo.hasReadLock {
		// Claimed directly rather than through checkoutWriter so that,
		// like the all-readers claim, it is counted only under
		// LockoutAcquired/LockoutRefused and not as a writer admission.
		lo.hasWriteLock = m.nWriters.CompareAndSwap(0, 1)
	}
	if lo.Valid() {
		m.counters.lockoutAcquired.Add(1)
	} else {
		m.counters.lockoutRefused.Add(1)
	}
	return lo
}

// Valid reports whether the Lockout holds exclusive access, i.e.
// whether both the all-readers claim and the writer claim succeeded.
func (lo *Lockout) Valid() bool {
	return lo.hasReadLock && lo.hasWriteLock
}

// Close releases whatever this Lockout acquired. It is safe to call on
// an invalid Lockout, and safe to call more than once: each lock is
// released at most once no matter how many times Close is called.
func (lo *Lockout) Close() {
	if lo.hasWriteLock {
		lo.owner.returnWriter()
		lo.hasWriteLock = false
	}
	if lo.hasReadLock {
		lo.owner.returnAllReaders()
		lo.hasReadLock = false
	}
}
