// License: Apache-2.0

package actor

import (
	"time"

	"go.uber.org/atomic"

	"github.com/momentics/tpcengine/api"
	"github.com/momentics/tpcengine/engine"
)

// Requests is the bounded call-id -> RequestFuture slot table owned by a
// single client loop (spec §3 "Requests table", §5 "Requests slot table is
// owned by a single client loop; inserts and removals occur only there").
// Not safe for concurrent mutation from multiple goroutines beyond the
// atomic id counter: Put/Complete/Fail/FailAll must all run on the owning
// loop's goroutine, matching how PartitionActorRef is used.
type Requests struct {
	nextID atomic.Int64

	slots    map[int64]*RequestFuture
	capacity int
}

// NewRequests constructs an empty slot table bounded at capacity entries;
// Put fails once that many requests are in flight (spec §9 "ioRequestScheduler
// ... default has capacity 512" sets the idiom of a finite, configured
// bound rather than an unbounded map).
func NewRequests(capacity int) *Requests {
	if capacity <= 0 {
		capacity = 512
	}
	return &Requests{
		slots:    make(map[int64]*RequestFuture, capacity),
		capacity: capacity,
	}
}

// NextCallID allocates a correlation id without registering anything,
// so a caller can embed it into a wire frame's header before the frame
// (and therefore the buffer to register) exists (spec §4.3: the frame
// built by PartitionActorRef.Submit must carry this id).
func (r *Requests) NextCallID() int64 { return r.nextID.Inc() }

// Register creates a RequestFuture for a callID already allocated via
// NextCallID (typically already embedded in buf's own header), acquiring
// a reference on buf for the slot itself (spec §9 Open Question: the slot
// keeps the frame alive for response correlation — see DESIGN.md).
// Capacity is enforced here, not in NextCallID.
func (r *Requests) Register(callID int64, buf api.Buffer) (*RequestFuture, error) {
	if len(r.slots) >= r.capacity {
		return nil, api.NewError(api.ErrKindIO, "Requests table is full", nil)
	}
	f := newRequestFuture(callID, buf.Acquire())
	r.slots[callID] = f
	return f, nil
}

// Put allocates a fresh correlation id and registers buf under it in one
// step, for callers with no need to embed the id into buf themselves
// (e.g. a one-way registration not carrying its own wire frame). The
// returned future's CallID must be embedded into any outgoing frame built
// separately so a later Complete/Fail call can find this slot.
func (r *Requests) Put(buf api.Buffer) (*RequestFuture, error) {
	return r.Register(r.nextID.Inc(), buf)
}

// Complete resolves the future at callID with a response buffer (spec §3
// "completion slot (response buffer or failure)"). Unknown call-ids are
// silently dropped (spec §5 "any reply that later arrives is dropped
// (detected via unknown call-id)"). Reports whether a slot was found.
func (r *Requests) Complete(callID int64, response api.Buffer) bool {
	f, ok := r.slots[callID]
	if !ok {
		return false
	}
	delete(r.slots, callID)
	f.complete(response, nil)
	return true
}

// Fail resolves the future at callID with an error (spec §4.3 "Failure").
// Reports whether a slot was found.
func (r *Requests) Fail(callID int64, err error) bool {
	f, ok := r.slots[callID]
	if !ok {
		return false
	}
	delete(r.slots, callID)
	f.complete(nil, err)
	return true
}

// FailAll resolves every outstanding future with err and empties the
// table; used on connection loss (ConnectionLost) and on engine shutdown
// (spec §8 "every outstanding future is completed with Shutdown").
func (r *Requests) FailAll(err error) {
	for callID, f := range r.slots {
		delete(r.slots, callID)
		f.complete(nil, err)
	}
}

// Len reports the number of requests currently in flight.
func (r *Requests) Len() int { return len(r.slots) }

// PutWithTimeout is Put plus a scheduled timeout on loop: if no Complete/
// Fail arrives within timeout, the slot is removed and the future fails
// with ErrKindTimeout (spec §4.3 "Future timeout ... remove slot, fail
// with Timeout, release the buffer ref held for the response"). Must be
// called from loop's owning goroutine, since it calls loop.Schedule.
func (r *Requests) PutWithTimeout(buf api.Buffer, loop *engine.EventLoop, timeout time.Duration) (*RequestFuture, error) {
	f, err := r.Put(buf)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout).UnixNano()
	loop.Schedule(func() {
		r.Fail(f.CallID(), api.NewError(api.ErrKindTimeout, "request timed out", nil))
	}, deadline)
	return f, nil
}
