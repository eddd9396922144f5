// Package rwsync provides a lock-free, wait-free single-writer /
// multi-reader value-exchange primitive.
//
// Original design by Ethan Blackwood (RWSync, MIT licensed); this is an
// independent Go implementation of the same index-arbitration scheme.
//
// One writer goroutine continually replaces the current value of some
// mutable object; up to N reader goroutines independently observe the
// most recently published value. Neither side ever blocks on a mutex,
// allocates, or waits on another participant along the fast path.
//
// The Manager owns nothing but indices: a table of N+2 atomic reference
// counts, a "latest" register, and a pair of admission gates. Callers
// supply their own storage (see the container subpackage for a ready
// made T-typed wrapper) and use a WriteIndex or ReadIndex handle to find
// out which slot of that storage to touch.
//
// Readers may skip intermediate publications; only the latest value is
// ever retained. There is no multi-writer support, no history, and no
// blocking wait for an update — readers poll via HasUpdate/PullUpdate.
package rwsync
