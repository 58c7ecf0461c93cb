// License: Apache-2.0

package actor

import (
	"time"

	"go.uber.org/atomic"

	"github.com/momentics/tpcengine/api"
)

// RequestFuture correlates one outstanding request to its eventual
// response or failure (spec §3 "Request / RequestFuture"). At-most-once
// completion is guaranteed by the settled flag: only the first of
// complete/Fail/timeout wins.
type RequestFuture struct {
	callID int64

	requestBuf api.Buffer // the slot's own acquired reference (spec §9 Open Question)

	settled  atomic.Bool
	done     chan struct{}
	response api.Buffer
	err      error
}

func newRequestFuture(callID int64, requestBuf api.Buffer) *RequestFuture {
	return &RequestFuture{
		callID:     callID,
		requestBuf: requestBuf,
		done:       make(chan struct{}),
	}
}

// CallID is the correlation id embedded into the outgoing frame.
func (f *RequestFuture) CallID() int64 { return f.callID }

// complete resolves the future exactly once; later calls are no-ops. It
// releases the slot's own reference on the request buffer regardless of
// outcome (spec §4.3 "Future timeout ... release the buffer ref held for
// the response").
func (f *RequestFuture) complete(response api.Buffer, err error) {
	if !f.settled.CompareAndSwap(false, true) {
		return
	}
	f.response = response
	f.err = err
	f.requestBuf.Release()
	close(f.done)
}

// Wait blocks until the future settles or timeout elapses, returning
// (response, nil) on success or (nil, err) on failure/timeout. A zero
// timeout blocks indefinitely.
func (f *RequestFuture) Wait(timeout time.Duration) (api.Buffer, error) {
	if timeout <= 0 {
		<-f.done
		return f.response, f.err
	}
	select {
	case <-f.done:
		return f.response, f.err
	case <-time.After(timeout):
		return nil, api.NewError(api.ErrKindTimeout, "request future timed out", nil)
	}
}

// Done reports a channel that closes when the future settles, for callers
// that want to select on multiple futures at once.
func (f *RequestFuture) Done() <-chan struct{} { return f.done }

// Settled reports whether the future has already resolved.
func (f *RequestFuture) Settled() bool { return f.settled.Load() }
