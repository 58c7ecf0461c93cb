// License: Apache-2.0

package buffer

import "testing"

func TestAcquireReleaseQuiescence(t *testing.T) {
	a := NewAllocator()
	b := a.Allocate(64)
	b.Acquire()
	b.Acquire()
	if got := b.RefCount(); got != 3 {
		t.Fatalf("refcount = %d, want 3", got)
	}
	b.Release()
	b.Release()
	if a.Stats().InUse != 1 {
		t.Fatalf("buffer released early, InUse = %d", a.Stats().InUse)
	}
	b.Release()
	if a.Stats().InUse != 0 {
		t.Fatalf("InUse = %d, want 0 at quiescence", a.Stats().InUse)
	}
	if len(a.free) != 1 {
		t.Fatalf("expected buffer back on free list, len=%d", len(a.free))
	}
}

func TestAllocateReusesFreedBuffer(t *testing.T) {
	a := NewAllocator()
	b1 := a.Allocate(32)
	b1.Release()
	if a.Stats().Allocated != 1 || a.Stats().Reused != 0 {
		t.Fatalf("unexpected stats after first allocate: %+v", a.Stats())
	}
	b2 := a.Allocate(16)
	if a.Stats().Reused != 1 {
		t.Fatalf("expected reuse, stats: %+v", a.Stats())
	}
	if b2.Capacity() < 16 {
		t.Fatalf("reused buffer too small: %d", b2.Capacity())
	}
}

func TestFlipAndClear(t *testing.T) {
	b := New(16)
	b.WriteInt32(42)
	b.Flip()
	if b.Position() != 0 || b.Limit() != 4 {
		t.Fatalf("flip produced position=%d limit=%d", b.Position(), b.Limit())
	}
	if v := b.ReadInt32(); v != 42 {
		t.Fatalf("read back %d, want 42", v)
	}
	b.Clear()
	if b.Position() != 0 || b.Limit() != b.Capacity() {
		t.Fatalf("clear produced position=%d limit=%d cap=%d", b.Position(), b.Limit(), b.Capacity())
	}
}

func TestSliceSharesRefcount(t *testing.T) {
	b := New(32)
	s := b.Slice(0, 16)
	s.Acquire()
	if b.RefCount() != 2 {
		t.Fatalf("parent refcount after slice acquire = %d, want 2", b.RefCount())
	}
	s.Release()
	if b.RefCount() != 1 {
		t.Fatalf("parent refcount after slice release = %d, want 1", b.RefCount())
	}
}
