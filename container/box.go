package container

import (
	"sync"
	"sync/atomic"

	"github.com/ethanb-rwsync/rwsync"
)

// Box[T] pairs an rwsync.Manager with the T-typed storage it
// arbitrates. It allocates maxReaders+2 copies of an initial template
// value up front, and (for an expandable Box) appends more copies of
// that template whenever it grows.
//
// Cells are held as a slice of pointers, swapped atomically on grow,
// rather than a plain growable slice of values: a plain slice would
// relocate existing elements on reallocation, invalidating any pointer
// a live WritePtr/ReadPtr had already handed out. This mirrors how
// rwsync.Manager keeps its own reference-count cells at stable
// addresses under growth.
type Box[T any] struct {
	manager *rwsync.Manager

	// growMu serializes Grow against itself and is always taken before
	// the manager's own resize mutex, matching the original library's
	// Container<T>::dataSizeMutex / Manager::sizeMutex ordering.
	growMu sync.Mutex
	cells  atomic.Pointer[[]*T]

	template T

	expandable bool
}

// NewBox constructs a fixed-capacity Box admitting up to maxReaders
// concurrent readers, with every cell initialized to a copy of
// template.
func NewBox[T any](maxReaders int, template T) (*Box[T], error) {
	return newBox(maxReaders, template, false)
}

// NewExpandableBox constructs a Box that starts out admitting a single
// reader but can grow via Grow or a GuaranteedReadPtr.
func NewExpandableBox[T any](template T) (*Box[T], error) {
	return newBox(1, template, true)
}

func newBox[T any](maxReaders int, template T, expandable bool) (*Box[T], error) {
	m, err := rwsync.NewManager(maxReaders)
	if err != nil {
		return nil, err
	}
	b := &Box[T]{
		manager:    m,
		template:   template,
		expandable: expandable,
	}
	cells := newCells(maxReaders+2, template)
	b.cells.Store(&cells)
	return b, nil
}

func newCells[T any](n int, template T) []*T {
	cells := make([]*T, n)
	for i := range cells {
		v := template
		cells[i] = &v
	}
	return cells
}

// NumAllocatedReaders returns the current reader capacity.
func (b *Box[T]) NumAllocatedReaders() int {
	return b.manager.GetMaxReaders()
}

// Stats returns a snapshot of the underlying Manager's admission and
// contention counters, the same way NumAllocatedReaders passes through
// GetMaxReaders: Box carries no counters of its own.
func (b *Box[T]) Stats() rwsync.Stats {
	return b.manager.Stats()
}

// Grow ensures the Box admits at least newMaxReaders concurrent
// readers, appending copies of the original template to its own cell
// storage before telling the Manager about the new capacity — the
// same order the source library's Container<T>::increaseMaxReadersTo
// uses, so the Manager never hands out an index the Box hasn't
// allocated storage for yet. On a fixed-capacity Box (NewBox) it does
// nothing.
func (b *Box[T]) Grow(newMaxReaders int) {
	if !b.expandable {
		return
	}
	b.growMu.Lock()
	defer b.growMu.Unlock()
	current := b.manager.GetMaxReaders()
	if current >= newMaxReaders {
		return
	}
	old := *b.cells.Load()
	grown := make([]*T, newMaxReaders+2)
	copy(grown, old)
	for i := len(old); i < len(grown); i++ {
		v := b.template
		grown[i] = &v
	}
	b.cells.Store(&grown)
	b.manager.EnsureSpaceForReaders(newMaxReaders)
}

// Reset returns the Box to the state where nothing has been
// published, resetting every allocated cell to a copy of the original
// template. It fails (returns false) if any WritePtr or ReadPtr is
// currently live.
func (b *Box[T]) Reset() bool {
	// Manager.Reset takes and releases its own Lockout, so it must not
	// run while this Box holds one (the resize mutex is not reentrant).
	if !b.manager.Reset() {
		return false
	}
	lo := rwsync.NewLockout(b.manager)
	defer lo.Close()
	if !lo.Valid() {
		return false
	}
	for _, cell := range *b.cells.Load() {
		*cell = b.template
	}
	return true
}

// Map applies f to every allocated cell, requiring exclusive access (no
// live WritePtr or ReadPtr). On an expandable Box it also applies f to
// the original template, since that template seeds every cell a future
// Grow allocates. It returns false if exclusive access could not be
// obtained.
func (b *Box[T]) Map(f func(*T)) bool {
	lo := rwsync.NewLockout(b.manager)
	defer lo.Close()
	if !lo.Valid() {
		return false
	}
	for _, cell := range *b.cells.Load() {
		f(cell)
	}
	if b.expandable {
		f(&b.template)
	}
	return true
}

// WritePtr is a scoped handle giving read/write access to the Box's
// current draft cell.
type WritePtr[T any] struct {
	box *Box[T]
	ind *rwsync.WriteIndex
}

// NewWritePtr checks out the writer role on b.
func NewWritePtr[T any](b *Box[T]) *WritePtr[T] {
	return &WritePtr[T]{box: b, ind: rwsync.NewWriteIndex(b.manager)}
}

// Valid reports whether this handle owns the writer role.
func (w *WritePtr[T]) Valid() bool {
	return w.ind.Valid()
}

// Get returns a pointer to the current draft cell. It panics if the
// handle is not Valid, matching the source library's pointer-semantics
// contract that dereferencing an invalid write pointer is a caller bug.
func (w *WritePtr[T]) Get() *T {
	idx, err := w.ind.CurrentIndex()
	if err != nil {
		panic(err)
	}
	return (*w.box.cells.Load())[idx]
}

// Publish makes the current draft cell visible to readers and advances
// to a freshly claimed draft cell.
func (w *WritePtr[T]) Publish() {
	w.ind.PushUpdate()
}

// Close releases the writer role.
func (w *WritePtr[T]) Close() {
	w.ind.Close()
}

// ReadPtr is a scoped handle giving read-only access to the Box's
// latched cell.
type ReadPtr[T any] struct {
	box *Box[T]
	ind *rwsync.ReadIndex
}

// NewReadPtr checks out a reader role on b.
func NewReadPtr[T any](b *Box[T]) *ReadPtr[T] {
	return &ReadPtr[T]{box: b, ind: rwsync.NewReadIndex(b.manager)}
}

// Valid reports whether this handle holds a reader role.
func (r *ReadPtr[T]) Valid() bool {
	return r.ind.Valid()
}

// CanRead reports whether the handle is admitted and currently latched
// onto a published cell, i.e. whether Get may be called.
func (r *ReadPtr[T]) CanRead() bool {
	return r.ind.CanRead()
}

// HasUpdate reports whether a newer publication is available.
func (r *ReadPtr[T]) HasUpdate() bool {
	return r.ind.HasUpdate()
}

// Refresh re-latches onto the current publication if a newer one is
// available.
func (r *ReadPtr[T]) Refresh() {
	r.ind.PullUpdate()
}

// Get returns a pointer to the latched cell. It panics if the handle
// cannot currently read (not Valid, or Valid-empty because nothing has
// been published yet).
func (r *ReadPtr[T]) Get() *T {
	idx, err := r.ind.CurrentIndex()
	if err != nil {
		panic(err)
	}
	return (*r.box.cells.Load())[idx]
}

// Close releases the reader role.
func (r *ReadPtr[T]) Close() {
	r.ind.Close()
}
