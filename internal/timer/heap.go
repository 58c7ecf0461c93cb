// License: Apache-2.0

// Package timer implements the deadline-ordered timer set an EventLoop uses
// to know how long it may park (spec §4.5). Grounded on the shape of the
// teacher's internal/concurrency/scheduler.go (a container/heap-backed
// timer queue owned by a single loop); rewritten from scratch because the
// teacher's version is an unfinished fragment (it references an undeclared
// import and leaves its dispatch loop as a comment).
package timer

import "container/heap"

// Task is a deferred unit of work, dispatched on the owning EventLoop
// goroutine when its deadline elapses.
type Task func()

type entry struct {
	deadlineNanos int64
	seq           int64 // tiebreaker for stable FIFO among equal deadlines
	task          Task
	index         int // heap.Interface bookkeeping
	canceled      bool
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].deadlineNanos != h[j].deadlineNanos {
		return h[i].deadlineNanos < h[j].deadlineNanos
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Handle cancels a scheduled Task.
type Handle struct{ e *entry }

// Set is a min-heap of (deadline, task), owned by exactly one EventLoop;
// every method must be called only from that loop's goroutine.
type Set struct {
	h        entryHeap
	nextSeq  int64
}

// NewSet constructs an empty timer set.
func NewSet() *Set {
	return &Set{}
}

// Schedule inserts task to run at deadlineNanos (an epoch/monotonic
// nanosecond value consistent with the caller's clock source) and returns a
// Handle that can Cancel it.
func (s *Set) Schedule(deadlineNanos int64, task Task) Handle {
	e := &entry{deadlineNanos: deadlineNanos, seq: s.nextSeq, task: task}
	s.nextSeq++
	heap.Push(&s.h, e)
	return Handle{e: e}
}

// Cancel removes a previously scheduled task; a no-op if it already fired
// or was already canceled.
func (s *Set) Cancel(h Handle) {
	if h.e == nil || h.e.index < 0 {
		return
	}
	h.e.canceled = true
}

// EarliestDeadline reports the deadline of the soonest live task, and false
// if the set is empty. Canceled entries at the root are popped lazily.
func (s *Set) EarliestDeadline() (int64, bool) {
	s.dropCanceled()
	if s.h.Len() == 0 {
		return 0, false
	}
	return s.h[0].deadlineNanos, true
}

// RunExpired pops and runs every task whose deadline is <= nowNanos,
// returning how many ran.
func (s *Set) RunExpired(nowNanos int64) int {
	ran := 0
	for {
		s.dropCanceled()
		if s.h.Len() == 0 || s.h[0].deadlineNanos > nowNanos {
			return ran
		}
		e := heap.Pop(&s.h).(*entry)
		if e.canceled {
			continue
		}
		e.task()
		ran++
	}
}

// Len returns the number of live (non-canceled) entries.
func (s *Set) Len() int {
	s.dropCanceled()
	n := 0
	for _, e := range s.h {
		if !e.canceled {
			n++
		}
	}
	return n
}

func (s *Set) dropCanceled() {
	for s.h.Len() > 0 && s.h[0].canceled {
		heap.Pop(&s.h)
	}
}
