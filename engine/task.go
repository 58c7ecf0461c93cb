// License: Apache-2.0

package engine

import "github.com/momentics/tpcengine/api"

// Task is a unit of work run on an EventLoop's owning goroutine, either
// submitted cross-thread (via Execute, drained from the concurrentRunQueue)
// or enqueued loop-locally (via the local task deque).
type Task func()

// Scheduler is the user cooperative work hook invoked once per main-loop
// iteration (spec §3 "scheduler tick hook", §4.1 step 5). It represents the
// embedding RPC application's own run-to-completion work (e.g. partition
// actor mailboxes); the engine only calls Tick and interprets its return
// value to decide whether to avoid parking on the next iteration.
type Scheduler interface {
	// Tick runs one batch of cooperative work and reports whether more
	// work remains immediately available (a true result postpones parking
	// on the loop's next iteration, per spec §4.1 step 2).
	Tick() (moreWork bool)
}

// SchedulerFunc adapts a plain function to the Scheduler interface.
type SchedulerFunc func() bool

func (f SchedulerFunc) Tick() bool { return f() }

// noopScheduler is the default Scheduler for a loop that was not given one:
// it never reports more work.
type noopScheduler struct{}

func (noopScheduler) Tick() bool { return false }

// OfferHandler is invoked on the owning EventLoop's goroutine for each
// buffer delivered through Offer (spec §4.3 "loop.offer(request)"). It
// represents the embedding application's partition executor; the engine
// itself is agnostic to what the buffer contains.
type OfferHandler func(buf api.Buffer)
