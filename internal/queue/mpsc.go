// License: Apache-2.0

// Package queue implements the bounded MPSC ring used as an EventLoop's
// concurrentRunQueue: any goroutine may Enqueue (the "concurrent" submit
// path of spec §4.1), but only the owning EventLoop goroutine may Dequeue.
//
// Grounded on the single-producer RingBuffer in
// internal/concurrency/ring.go of the teacher repo, generalized to a
// multi-producer slot claim via CAS so many goroutines can call Enqueue
// concurrently while a single consumer drains it.
package queue

import "go.uber.org/atomic"

// MPSC is a bounded multi-producer, single-consumer ring buffer of
// power-of-two capacity.
type MPSC[T any] struct {
	data []T
	mask uint64

	head atomic.Uint64 // next slot to dequeue
	_    [56]byte       // padding to separate head/tail cache lines
	tail atomic.Uint64  // next slot to claim for enqueue
	_    [56]byte
	committed atomic.Uint64 // highest tail claim that finished writing its slot
}

// NewMPSC allocates a ring of the given power-of-two size.
func NewMPSC[T any](size int) *MPSC[T] {
	if size <= 0 || size&(size-1) != 0 {
		panic("queue: size must be a power of two")
	}
	return &MPSC[T]{
		data: make([]T, size),
		mask: uint64(size - 1),
	}
}

// Enqueue claims a slot and writes item; returns false if the ring is full.
// Safe to call from any goroutine.
func (q *MPSC[T]) Enqueue(item T) bool {
	for {
		tail := q.tail.Load()
		head := q.head.Load()
		if tail-head >= uint64(len(q.data)) {
			return false
		}
		if q.tail.CompareAndSwap(tail, tail+1) {
			q.data[tail&q.mask] = item
			// publish: spin until prior claims have committed, so the
			// consumer never observes a gap.
			for !q.committed.CompareAndSwap(tail, tail+1) {
			}
			return true
		}
	}
}

// Dequeue removes the oldest item. Must only be called from the single
// consumer goroutine.
func (q *MPSC[T]) Dequeue() (T, bool) {
	var zero T
	head := q.head.Load()
	if head >= q.committed.Load() {
		return zero, false
	}
	item := q.data[head&q.mask]
	q.data[head&q.mask] = zero
	q.head.Store(head + 1)
	return item, true
}

// Empty reports whether the consumer-visible queue currently has no items.
func (q *MPSC[T]) Empty() bool {
	return q.head.Load() >= q.committed.Load()
}

// Len returns the number of committed, not-yet-dequeued items.
func (q *MPSC[T]) Len() int {
	return int(q.committed.Load() - q.head.Load())
}
