// License: Apache-2.0

// Package buffer implements IOBuffer, the reference-counted, growable byte
// container the engine uses to carry frames (spec §3 IOBuffer, §4.4).
//
// Grounded on the teacher's pool.linuxBuffer (pool/bufferpool_linux.go) for
// the Bytes/Slice/Release/Copy shape and on api.Buffer for the interface
// contract; the refcount and position/limit/capacity cursor come straight
// from spec §3 and from PartitionActorRef.java's acquire()/release() usage
// in _examples/original_source.
package buffer

import (
	"encoding/binary"

	"go.uber.org/atomic"

	"github.com/momentics/tpcengine/api"
)

// IOBuffer is the concrete api.Buffer implementation.
type IOBuffer struct {
	data     []byte
	position int
	limit    int

	refs  atomic.Int32
	pool  *Allocator // nil for a one-off, unpooled buffer
}

var _ api.Buffer = (*IOBuffer)(nil)

// newOwned constructs a fresh, refcount-1 buffer backed by data, not tied
// to any allocator.
func newOwned(data []byte) *IOBuffer {
	b := &IOBuffer{data: data, limit: len(data)}
	b.refs.Store(1)
	return b
}

// New allocates a standalone IOBuffer of capacity n, refcount 1, not
// returned to any pool on Release. Prefer Allocator.Allocate on an
// EventLoop's hot path; New is for one-off or test use.
func New(n int) *IOBuffer {
	return newOwned(make([]byte, n))
}

// Bytes returns the readable/writable window [position:limit).
func (b *IOBuffer) Bytes() []byte { return b.data[b.position:b.limit] }

// Position returns the current cursor.
func (b *IOBuffer) Position() int { return b.position }

// Limit returns the end of the current window.
func (b *IOBuffer) Limit() int { return b.limit }

// Capacity returns the full backing storage size.
func (b *IOBuffer) Capacity() int { return len(b.data) }

// SetPosition moves the cursor within [0, Limit()].
func (b *IOBuffer) SetPosition(p int) {
	if p < 0 || p > b.limit {
		panic("buffer: position out of range")
	}
	b.position = p
}

// SetLimit moves the limit within [Position(), Capacity()].
func (b *IOBuffer) SetLimit(l int) {
	if l < b.position || l > len(b.data) {
		panic("buffer: limit out of range")
	}
	b.limit = l
}

// Flip prepares the buffer for reading what was just written.
func (b *IOBuffer) Flip() {
	b.limit = b.position
	b.position = 0
}

// Clear resets the buffer to its full writable window.
func (b *IOBuffer) Clear() {
	b.position = 0
	b.limit = len(b.data)
}

// Slice returns a view over [from:to) that shares storage and refcount with
// the parent: releasing a slice releases the parent.
func (b *IOBuffer) Slice(from, to int) api.Buffer {
	if from < 0 || to > len(b.data) || from > to {
		panic("buffer: slice bounds out of range")
	}
	return &sliceView{parent: b, from: from, to: to}
}

// Acquire increments the refcount and returns the same buffer.
func (b *IOBuffer) Acquire() api.Buffer {
	b.refs.Inc()
	return b
}

// Release decrements the refcount; at zero the buffer returns to its
// Allocator's free list, or is discarded if unpooled.
func (b *IOBuffer) Release() {
	if b.refs.Dec() == 0 {
		if b.pool != nil {
			b.pool.recycle(b)
		}
	}
}

// RefCount reports the current reference count.
func (b *IOBuffer) RefCount() int32 { return b.refs.Load() }

// Copy returns a standalone deep copy of Bytes().
func (b *IOBuffer) Copy() []byte {
	dst := make([]byte, b.limit-b.position)
	copy(dst, b.data[b.position:b.limit])
	return dst
}

// --- primitive cursor-advancing read/write helpers, used by the frame
// codec and by tests exercising the wire format (spec §6). ---

// WriteInt32 writes a big-endian int32 at Position and advances it by 4.
func (b *IOBuffer) WriteInt32(v int32) {
	binary.BigEndian.PutUint32(b.data[b.position:], uint32(v))
	b.position += 4
	if b.position > b.limit {
		b.limit = b.position
	}
}

// WriteInt64 writes a big-endian int64 at Position and advances it by 8.
func (b *IOBuffer) WriteInt64(v int64) {
	binary.BigEndian.PutUint64(b.data[b.position:], uint64(v))
	b.position += 8
	if b.position > b.limit {
		b.limit = b.position
	}
}

// WriteBytes appends raw bytes at Position and advances past them.
func (b *IOBuffer) WriteBytes(p []byte) {
	n := copy(b.data[b.position:], p)
	if n < len(p) {
		panic("buffer: write exceeds capacity")
	}
	b.position += len(p)
	if b.position > b.limit {
		b.limit = b.position
	}
}

// ReadInt32 reads a big-endian int32 at Position and advances it by 4.
func (b *IOBuffer) ReadInt32() int32 {
	v := int32(binary.BigEndian.Uint32(b.data[b.position:]))
	b.position += 4
	return v
}

// ReadInt64 reads a big-endian int64 at Position and advances it by 8.
func (b *IOBuffer) ReadInt64() int64 {
	v := int64(binary.BigEndian.Uint64(b.data[b.position:]))
	b.position += 8
	return v
}

// PutInt32At patches a big-endian int32 at an absolute offset without
// moving Position, used by the frame codec to back-patch the size prefix
// once a frame's total length is known (spec §6 ConstructComplete).
func (b *IOBuffer) PutInt32At(offset int, v int32) {
	binary.BigEndian.PutUint32(b.data[offset:], uint32(v))
}

// GetInt32At reads a big-endian int32 at an absolute offset without moving
// Position.
func (b *IOBuffer) GetInt32At(offset int) int32 {
	return int32(binary.BigEndian.Uint32(b.data[offset:]))
}

// sliceView is a reslice of an IOBuffer: it shares storage and refcount
// with the parent so Acquire/Release remain correct across both views.
type sliceView struct {
	parent *IOBuffer
	from   int
	to     int
	pos    int
}

var _ api.Buffer = (*sliceView)(nil)

func (s *sliceView) Bytes() []byte       { return s.parent.data[s.from+s.pos : s.to] }
func (s *sliceView) Position() int       { return s.pos }
func (s *sliceView) Limit() int          { return s.to - s.from }
func (s *sliceView) Capacity() int       { return s.to - s.from }
func (s *sliceView) SetPosition(p int) {
	if p < 0 || p > s.to-s.from {
		panic("buffer: position out of range")
	}
	s.pos = p
}
func (s *sliceView) SetLimit(l int)      { s.to = s.from + l }
func (s *sliceView) Flip()               { s.to = s.from + s.pos; s.pos = 0 }
func (s *sliceView) Clear()              { s.pos = 0 }
func (s *sliceView) Slice(a, b int) api.Buffer {
	return s.parent.Slice(s.from+a, s.from+b)
}
func (s *sliceView) Acquire() api.Buffer { s.parent.Acquire(); return s }
func (s *sliceView) Release()            { s.parent.Release() }
func (s *sliceView) RefCount() int32     { return s.parent.RefCount() }
func (s *sliceView) Copy() []byte {
	dst := make([]byte, len(s.Bytes()))
	copy(dst, s.Bytes())
	return dst
}
