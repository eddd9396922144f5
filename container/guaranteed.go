package container

import "github.com/ethanb-rwsync/rwsync"

// GuaranteedReadPtr is a ReadPtr that is always Valid: on construction
// it grows the underlying Box (and thus its Manager) by one reader
// slot at a time until admission succeeds, rather than ever handing
// the caller an Invalid handle. Only meaningful on an expandable Box.
type GuaranteedReadPtr[T any] struct {
	ReadPtr[T]
}

// NewGuaranteedReadPtr constructs a GuaranteedReadPtr against b,
// growing b as needed. It still may be Valid-empty if nothing has been
// published yet — check CanRead before calling Get.
func NewGuaranteedReadPtr[T any](b *Box[T]) *GuaranteedReadPtr[T] {
	if !b.expandable {
		panic("container: NewGuaranteedReadPtr requires an expandable Box")
	}
	g := &GuaranteedReadPtr[T]{}
	for {
		ind := rwsync.NewReadIndex(b.manager)
		if ind.Valid() {
			g.box = b
			g.ind = ind
			return g
		}
		ind.Close()
		b.Grow(b.NumAllocatedReaders() + 1)
	}
}
