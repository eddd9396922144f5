package rwsync

import "testing"

func TestNewManagerDomainErrors(t *testing.T) {
	if _, err := NewManager(0); err != ErrDomain {
		t.Fatalf("expected ErrDomain for maxReaders=0, got %v", err)
	}
	if _, err := NewManager(-1); err != ErrDomain {
		t.Fatalf("expected ErrDomain for maxReaders=-1, got %v", err)
	}
	if _, err := NewManager(maxAllowedReaders + 1); err != ErrDomain {
		t.Fatalf("expected ErrDomain for maxReaders too large, got %v", err)
	}
	m, err := NewManager(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.GetMaxReaders(); got != 1 {
		t.Fatalf("expected maxReaders=1, got %d", got)
	}
}

func TestRoundTrip(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]int, m.GetMaxReaders()+2)

	w := NewWriteIndex(m)
	if !w.Valid() {
		t.Fatal("expected writer to be admitted")
	}
	wi, err := w.CurrentIndex()
	if err != nil {
		t.Fatal(err)
	}
	data[wi] = 42
	w.PushUpdate()

	r := NewReadIndex(m)
	if !r.Valid() || !r.CanRead() {
		t.Fatalf("expected fresh reader to see a published value")
	}
	ri, err := r.CurrentIndex()
	if err != nil {
		t.Fatal(err)
	}
	if data[ri] != 42 {
		t.Fatalf("expected 42, got %d", data[ri])
	}
	r.Close()
	w.Close()
}

func TestReadBeforeAnyPublish(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	r := NewReadIndex(m)
	defer r.Close()
	if !r.Valid() {
		t.Fatal("expected Valid-empty reader to be admitted")
	}
	if r.CanRead() {
		t.Fatal("expected CanRead=false before any publish")
	}
	if r.HasUpdate() {
		t.Fatal("expected HasUpdate=false before any publish")
	}
	if _, err := r.CurrentIndex(); err != ErrInvalidHandle {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}

	w := NewWriteIndex(m)
	defer w.Close()
	w.PushUpdate()

	if !r.HasUpdate() {
		t.Fatal("expected HasUpdate=true after publish")
	}
	r.PullUpdate()
	if !r.CanRead() {
		t.Fatal("expected CanRead=true after PullUpdate")
	}
}

func TestSinglePublisherSingleConsumerSequence(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]int, m.GetMaxReaders()+2)
	w := NewWriteIndex(m)
	defer w.Close()

	for _, v := range []int{0, 1, 2} {
		wi, err := w.CurrentIndex()
		if err != nil {
			t.Fatal(err)
		}
		data[wi] = v
		w.PushUpdate()

		r := NewReadIndex(m)
		ri, err := r.CurrentIndex()
		if err != nil {
			t.Fatal(err)
		}
		if data[ri] != v {
			t.Fatalf("expected %d, got %d", v, data[ri])
		}
		r.Close()
	}
}

func TestReaderAdmissionBound(t *testing.T) {
	m, err := NewManager(2)
	if err != nil {
		t.Fatal(err)
	}
	r1 := NewReadIndex(m)
	r2 := NewReadIndex(m)
	defer r1.Close()
	defer r2.Close()
	if !r1.Valid() || !r2.Valid() {
		t.Fatal("expected both readers to be admitted")
	}

	r3 := NewReadIndex(m)
	if r3.Valid() {
		t.Fatal("expected third reader to be refused")
	}
	if got := m.nReaders.Load(); got != 2 {
		t.Fatalf("expected nReaders=2, got %d", got)
	}
}

func TestSecondWriterInvalid(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	w1 := NewWriteIndex(m)
	defer w1.Close()
	if !w1.Valid() {
		t.Fatal("expected first writer to be admitted")
	}

	w2 := NewWriteIndex(m)
	if w2.Valid() {
		t.Fatal("expected second writer to be invalid")
	}
	if _, err := w2.CurrentIndex(); err != ErrInvalidHandle {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
	// Invalid handle's PushUpdate and Close must be safe no-ops.
	w2.PushUpdate()
	w2.Close()
}

func TestResetContention(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWriteIndex(m)
	defer w.Close()

	if m.Reset() {
		t.Fatal("expected Reset to fail while a writer is outstanding")
	}
}

func TestResetSucceedsWithNoHandles(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWriteIndex(m)
	w.PushUpdate()
	w.Close()

	if !m.Reset() {
		t.Fatal("expected Reset to succeed with no handles outstanding")
	}
	r := NewReadIndex(m)
	defer r.Close()
	if r.CanRead() {
		t.Fatal("expected no published value immediately after Reset")
	}
}

func TestGuaranteedReadWithGrow(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	r1 := NewReadIndex(m)
	defer r1.Close()
	if !r1.Valid() {
		t.Fatal("expected first reader to be admitted")
	}

	r2 := NewGuaranteedReadIndex(m)
	defer r2.Close()
	if !r2.Valid() {
		t.Fatal("expected guaranteed reader to always be admitted")
	}
	if got := m.GetMaxReaders(); got != 2 {
		t.Fatalf("expected maxReaders to have grown to 2, got %d", got)
	}
}

func TestGrowIdempotence(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	m.EnsureSpaceForReaders(5)
	if got := m.GetMaxReaders(); got != 5 {
		t.Fatalf("expected maxReaders=5, got %d", got)
	}
	m.EnsureSpaceForReaders(3)
	if got := m.GetMaxReaders(); got != 5 {
		t.Fatalf("expected grow(3) after grow(5) to be a no-op, got %d", got)
	}
}

func TestWriteIndexTryToMakeValid(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	w1 := NewWriteIndex(m)
	defer w1.Close()

	w2 := NewWriteIndex(m)
	if w2.TryToMakeValid() {
		t.Fatal("expected TryToMakeValid to fail while another writer holds the role")
	}

	w1.Close()
	if !w2.TryToMakeValid() {
		t.Fatal("expected TryToMakeValid to succeed once the writer role is free")
	}
	if !w2.TryToMakeValid() {
		t.Fatal("expected TryToMakeValid to be idempotent once already valid")
	}
	w2.Close()
}

func TestReadIndexTryToMakeValid(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	r1 := NewReadIndex(m)
	defer r1.Close()

	r2 := NewReadIndex(m)
	if r2.TryToMakeValid() {
		t.Fatal("expected TryToMakeValid to fail while the only reader slot is taken")
	}

	w := NewWriteIndex(m)
	w.PushUpdate()
	w.Close()

	r1.Close()
	if !r2.TryToMakeValid() {
		t.Fatal("expected TryToMakeValid to succeed once a reader slot is free")
	}
	if !r2.CanRead() {
		t.Fatal("expected TryToMakeValid to latch onto the value published while it was invalid")
	}
	r2.Close()
}

func TestStatsCounters(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}

	w1 := NewWriteIndex(m)
	w2 := NewWriteIndex(m) // refused
	w2.Close()

	r1 := NewReadIndex(m)
	r2 := NewReadIndex(m) // refused, only one reader slot
	r2.Close()

	lo := NewLockout(m) // refused, w1 and r1 still outstanding
	lo.Close()

	w1.Close()
	r1.Close()
	m.EnsureSpaceForReaders(4)

	lo2 := NewLockout(m) // succeeds now that nothing is outstanding
	lo2.Close()

	s := m.Stats()
	if s.WriterAdmitted != 1 {
		t.Fatalf("expected WriterAdmitted=1, got %d", s.WriterAdmitted)
	}
	if s.WriterRefused != 1 {
		t.Fatalf("expected WriterRefused=1, got %d", s.WriterRefused)
	}
	if s.ReaderAdmitted != 1 {
		t.Fatalf("expected ReaderAdmitted=1, got %d", s.ReaderAdmitted)
	}
	if s.ReaderRefused != 1 {
		t.Fatalf("expected ReaderRefused=1, got %d", s.ReaderRefused)
	}
	if s.Resizes != 1 {
		t.Fatalf("expected Resizes=1, got %d", s.Resizes)
	}
	if s.LockoutAcquired != 1 {
		t.Fatalf("expected LockoutAcquired=1, got %d", s.LockoutAcquired)
	}
	if s.LockoutRefused != 1 {
		t.Fatalf("expected LockoutRefused=1, got %d", s.LockoutRefused)
	}
}

func TestMonotonicVisibility(t *testing.T) {
	m, err := NewManager(1)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]int, m.GetMaxReaders()+2)
	w := NewWriteIndex(m)
	defer w.Close()
	r := NewReadIndex(m)
	defer r.Close()

	var last = -1
	for _, v := range []int{1, 2, 3, 5, 8} {
		wi, _ := w.CurrentIndex()
		data[wi] = v
		w.PushUpdate()

		if r.HasUpdate() {
			r.PullUpdate()
		}
		if ri, err := r.CurrentIndex(); err == nil {
			if data[ri] < last {
				t.Fatalf("observed regression: %d after %d", data[ri], last)
			}
			last = data[ri]
		}
	}
}
