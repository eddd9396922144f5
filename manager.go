package rwsync

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrDomain is returned by NewManager when maxReaders is out of range.
var ErrDomain = fmt.Errorf("rwsync: maxReaders out of range")

// ErrInvalidHandle is returned by CurrentIndex when a handle's state
// forbids dereferencing it (Invalid WriteIndex, Invalid or Valid-empty
// ReadIndex).
var ErrInvalidHandle = fmt.Errorf("rwsync: handle is not valid for this operation")

// maxAllowedReaders mirrors the source library's INT_MAX - 2 bound: the
// slot table has maxReaders+2 entries and every entry must address
// cleanly as an int.
const maxAllowedReaders = int(^uint(0)>>1) - 2

// draft marks a cell as the writer's private, unpublished slot.
const draft = -1

// noLatest marks the publication register before anything has ever
// been published.
const noLatest = -1

// Manager arbitrates slot[0..size) among one writer and up to
// maxReaders concurrent readers. It never allocates user storage
// itself; callers address their own T[] by the indices this type
// hands out. See the container subpackage for a T-typed wrapper.
//
// The zero value is not usable; construct with NewManager.
type Manager struct {
	// refCounts[i] == -1 means cell i is the writer's current draft.
	// refCounts[i] == k >= 0 means cell i holds a published snapshot
	// currently observed by k readers.
	//
	// Stored as a pointer to a slice of atomics so EnsureSpaceForReaders
	// can append new cells without invalidating the addresses of
	// existing ones: refCounts itself is swapped, but each *atomic.Int64
	// already handed out keeps pointing at the same cell.
	refCounts atomic.Pointer[[]*atomic.Int64]

	latest atomic.Int64

	nWriters atomic.Int64
	nReaders atomic.Int64

	// resizeMu protects growth of refCounts and the maxReaders count.
	// checkoutAllReaders and EnsureSpaceForReaders both take it;
	// reader/writer fast paths never touch it.
	resizeMu sync.Mutex

	// writerIndex is owned exclusively by whichever goroutine holds the
	// one live WriteIndex; it is never touched concurrently.
	writerIndex int64

	maxReaders atomic.Int64

	counters *statCounters
}

// Stats is a point-in-time snapshot of admission and contention
// counters, exposed the way TaskQ.Stats() is in the ring-buffer
// lineage this package descends from: plain atomic counters, no
// logging library.
type Stats struct {
	WriterAdmitted  uint64
	WriterRefused   uint64
	ReaderAdmitted  uint64
	ReaderRefused   uint64
	Resizes         uint64
	LockoutAcquired uint64
	LockoutRefused  uint64
}

// statCounters holds the internal mutable counters backing Stats.
type statCounters struct {
	writerAdmitted  atomic.Uint64
	writerRefused   atomic.Uint64
	readerAdmitted  atomic.Uint64
	readerRefused   atomic.Uint64
	resizes         atomic.Uint64
	lockoutAcquired atomic.Uint64
	lockoutRefused  atomic.Uint64
}

// NewManager constructs a Manager admitting up to maxReaders concurrent
// readers. It returns ErrDomain if maxReaders is less than 1 or larger
// than the implementation's addressable bound.
func NewManager(maxReaders int) (*Manager, error) {
	if maxReaders < 1 || maxReaders > maxAllowedReaders {
		return nil, ErrDomain
	}
	m := &Manager{}
	m.counters = &statCounters{}
	m.maxReaders.Store(int64(maxReaders))
	cells := newCells(maxReaders + 2)
	m.refCounts.Store(&cells)
	m.reset(cells)
	return m, nil
}

func newCells(n int) []*atomic.Int64 {
	cells := make([]*atomic.Int64, n)
	for i := range cells {
		cells[i] = &atomic.Int64{}
	}
	return cells
}

// reset performs the actual state reinitialization once the caller has
// proven exclusive access (either at construction or via a Lockout).
func (m *Manager) reset(cells []*atomic.Int64) {
	m.writerIndex = 0
	m.latest.Store(noLatest)
	cells[0].Store(draft)
	for i := 1; i < len(cells); i++ {
		cells[i].Store(0)
	}
}

// Reset returns the Manager to the empty-publication state: no value
// has ever been published, and slot 0 is the writer's draft. It
// succeeds only when no WriteIndex or ReadIndex handle is currently
// live; otherwise it returns false (E-CONTENDED-ADMIN) and leaves all
// state unchanged.
func (m *Manager) Reset() bool {
	lo := NewLockout(m)
	defer lo.Close()
	if !lo.Valid() {
		return false
	}
	m.reset(*m.refCounts.Load())
	return true
}

// GetMaxReaders returns the current reader capacity. It may increase
// concurrently due to EnsureSpaceForReaders or a GuaranteedReadIndex.
func (m *Manager) GetMaxReaders() int {
	return int(m.maxReaders.Load())
}

// EnsureSpaceForReaders idempotently grows the Manager so that
// GetMaxReaders() >= newMax. It acquires the resize mutex but never
// the writer or reader gates, so it never blocks the fast path. If the
// Manager already admits at least newMax readers, this is a no-op.
func (m *Manager) EnsureSpaceForReaders(newMax int) {
	m.resizeMu.Lock()
	defer m.resizeMu.Unlock()
	m.growLocked(newMax)
}

// growLocked must be called with resizeMu held.
func (m *Manager) growLocked(newMax int) {
	current := int(m.maxReaders.Load())
	if current >= newMax {
		return
	}
	old := *m.refCounts.Load()
	grown := make([]*atomic.Int64, newMax+2)
	copy(grown, old)
	for i := len(old); i < len(grown); i++ {
		grown[i] = &atomic.Int64{}
		grown[i].Store(0)
	}
	m.refCounts.Store(&grown)
	m.maxReaders.Store(int64(newMax))
	m.counters.resizes.Add(1)
}

// Stats returns a snapshot of admission and contention counters.
func (m *Manager) Stats() Stats {
	return Stats{
		WriterAdmitted:  m.counters.writerAdmitted.Load(),
		WriterRefused:   m.counters.writerRefused.Load(),
		ReaderAdmitted:  m.counters.readerAdmitted.Load(),
		ReaderRefused:   m.counters.readerRefused.Load(),
		Resizes:         m.counters.resizes.Load(),
		LockoutAcquired: m.counters.lockoutAcquired.Load(),
		LockoutRefused:  m.counters.lockoutRefused.Load(),
	}
}

// checkoutWriter admits exactly one writer. It returns true iff the CAS
// from 0 to 1 succeeded.
func (m *Manager) checkoutWriter() bool {
	ok := m.nWriters.CompareAndSwap(0, 1)
	if ok {
		m.counters.writerAdmitted.Add(1)
	} else {
		m.counters.writerRefused.Add(1)
	}
	return ok
}

// returnWriter releases the single writer slot.
func (m *Manager) returnWriter() {
	old := m.nWriters.Swap(0)
	if old != 1 {
		panic("rwsync: returnWriter found nWriters != 1")
	}
}

// checkoutReader admits one more reader, up to the current maxReaders.
func (m *Manager) checkoutReader() bool {
	for {
		current := m.nReaders.Load()
		if current >= m.maxReaders.Load() {
			m.counters.readerRefused.Add(1)
			return false
		}
		if m.nReaders.CompareAndSwap(current, current+1) {
			m.counters.readerAdmitted.Add(1)
			return true
		}
	}
}

// returnReader releases one reader slot.
func (m *Manager) returnReader() {
	old := m.nReaders.Add(-1) + 1
	if old <= 0 || old > m.maxReaders.Load() {
		panic("rwsync: returnReader found nReaders out of range")
	}
}

// checkoutAllReaders acquires the resize mutex and then attempts to
// claim every reader slot in one CAS. On success the caller holds both
// the mutex and all reader slots, so maxReaders cannot change
// concurrently. On failure, the mutex is released before returning.
func (m *Manager) checkoutAllReaders() bool {
	m.resizeMu.Lock()
	ok := m.nReaders.CompareAndSwap(0, m.maxReaders.Load())
	if !ok {
		m.resizeMu.Unlock()
		return false
	}
	return true
}

// returnAllReaders releases every reader slot and the resize mutex
// acquired by a prior successful checkoutAllReaders.
func (m *Manager) returnAllReaders() {
	m.nReaders.Store(0)
	m.resizeMu.Unlock()
}

// pushWrite publishes the writer's current draft cell as the new latest
// snapshot, then claims a fresh draft cell for the writer to use next.
// It must only ever run on the writer goroutine, and is not reentrant.
func (m *Manager) pushWrite() {
	cells := *m.refCounts.Load()
	wi := m.writerIndex
	if wi < 0 {
		panic("rwsync: pushWrite called with no writer index")
	}

	// The draft cell now counts as an empty published cell.
	cells[wi].Store(0)

	// Seq-cst: announces the new snapshot and is the synchronization
	// point paired with the reader's seq-cst load in getLatest.
	m.latest.Store(wi)

	for i, cell := range cells {
		if int64(i) == wi {
			continue
		}
		// Seq-cst: paired with the reader's seq-cst decrement in
		// finishRead. See the comment in finishRead (read_index.go) for
		// the proof sketch of why this prevents a reader from "occupying two
		// slots" during the scan.
		if cell.CompareAndSwap(0, draft) {
			m.writerIndex = int64(i)
			return
		}
	}
	panic("rwsync: pushWrite found no free cell; sizing invariant violated")
}
