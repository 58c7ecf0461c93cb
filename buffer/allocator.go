// License: Apache-2.0

package buffer

import "github.com/momentics/tpcengine/api"

// Allocator is the non-concurrent, per-loop pooled buffer allocator (spec
// §4.4). It must only ever be used from the single goroutine that owns it;
// every IOBuffer it vends must be Released on that same goroutine.
//
// Grounded on the teacher's baseBufferPool (pool/base_bufferpool.go), which
// keeps a free list keyed by size and recycles on Put; simplified here to a
// single free list (sorted by capacity isn't needed: a bounded number of
// distinct frame sizes dominate in practice) since the allocator is single-
// threaded and needs no locking or channels.
type Allocator struct {
	free  []*IOBuffer
	stats api.AllocatorStats
}

var _ api.Allocator = (*Allocator)(nil)

// NewAllocator constructs an empty per-loop allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate returns a writable IOBuffer of at least n bytes, refcount 1.
func (a *Allocator) Allocate(n int) api.Buffer {
	for i := len(a.free) - 1; i >= 0; i-- {
		cand := a.free[i]
		if cand.Capacity() >= n {
			a.free[i] = a.free[len(a.free)-1]
			a.free = a.free[:len(a.free)-1]
			cand.position = 0
			cand.limit = n
			cand.refs.Store(1)
			a.stats.Reused++
			a.stats.InUse++
			return cand
		}
	}
	b := newOwned(make([]byte, n))
	b.pool = a
	a.stats.Allocated++
	a.stats.InUse++
	return b
}

// Stats reports allocation/reuse accounting, useful for asserting the
// acquire/release quiescence invariant (spec §8) in tests.
func (a *Allocator) Stats() api.AllocatorStats { return a.stats }

// recycle returns b to the free list; called by IOBuffer.Release when its
// refcount reaches zero.
func (a *Allocator) recycle(b *IOBuffer) {
	a.stats.InUse--
	a.free = append(a.free, b)
}
