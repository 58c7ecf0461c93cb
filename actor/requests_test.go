// License: Apache-2.0

package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/tpcengine/api"
	"github.com/momentics/tpcengine/buffer"
	"github.com/momentics/tpcengine/engine"
)

func newTestBuffer() *buffer.IOBuffer { return buffer.New(16) }

func TestRequestsCompleteSettlesFutureExactlyOnce(t *testing.T) {
	r := NewRequests(4)
	buf := newTestBuffer()
	f, err := r.Put(buf)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	buf.Release()

	resp := newTestBuffer()
	if !r.Complete(f.CallID(), resp) {
		t.Fatal("Complete reported no such slot")
	}
	// A second Complete/Fail on the same call id must be a no-op: the
	// table has already forgotten it, and the future is already settled.
	if r.Complete(f.CallID(), newTestBuffer()) {
		t.Fatal("Complete found a slot that should have been removed")
	}
	if r.Fail(f.CallID(), errors.New("late")) {
		t.Fatal("Fail found a slot that should have been removed")
	}

	got, waitErr := f.Wait(time.Second)
	if waitErr != nil {
		t.Fatalf("Wait: %v", waitErr)
	}
	if got != resp {
		t.Fatal("Wait returned a different buffer than Complete supplied")
	}
	if !f.Settled() {
		t.Fatal("future should report Settled after Complete")
	}
}

func TestRequestsFailSettlesFutureWithError(t *testing.T) {
	r := NewRequests(4)
	buf := newTestBuffer()
	f, err := r.Put(buf)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	buf.Release()

	wantErr := api.NewError(api.ErrKindConnectionLost, "peer gone", nil)
	if !r.Fail(f.CallID(), wantErr) {
		t.Fatal("Fail reported no such slot")
	}
	_, gotErr := f.Wait(time.Second)
	if !errors.Is(gotErr, api.KindError(api.ErrKindConnectionLost)) {
		t.Fatalf("expected ErrKindConnectionLost, got %v", gotErr)
	}
}

func TestRequestsPutRejectsOverCapacity(t *testing.T) {
	r := NewRequests(2)
	b1, b2 := newTestBuffer(), newTestBuffer()
	defer b1.Release()
	defer b2.Release()

	if _, err := r.Put(b1); err != nil {
		t.Fatalf("Put #1: %v", err)
	}
	if _, err := r.Put(b2); err != nil {
		t.Fatalf("Put #2: %v", err)
	}
	b3 := newTestBuffer()
	defer b3.Release()
	if _, err := r.Put(b3); err == nil {
		t.Fatal("expected capacity error on third Put")
	}
}

// TestRequestsFailAllSettlesEveryOutstandingFuture covers the shutdown /
// connection-loss broadcast path (spec §8 "every outstanding future is
// completed with Shutdown").
func TestRequestsFailAllSettlesEveryOutstandingFuture(t *testing.T) {
	r := NewRequests(8)
	futures := make([]*RequestFuture, 0, 5)
	for i := 0; i < 5; i++ {
		buf := newTestBuffer()
		f, err := r.Put(buf)
		buf.Release()
		if err != nil {
			t.Fatalf("Put #%d: %v", i, err)
		}
		futures = append(futures, f)
	}

	r.FailAll(api.NewError(api.ErrKindShutdown, "engine stopping", nil))

	if r.Len() != 0 {
		t.Fatalf("expected empty table after FailAll, got %d", r.Len())
	}
	for i, f := range futures {
		if !f.Settled() {
			t.Fatalf("future #%d not settled after FailAll", i)
		}
		_, err := f.Wait(time.Second)
		if !errors.Is(err, api.KindError(api.ErrKindShutdown)) {
			t.Fatalf("future #%d: expected ErrKindShutdown, got %v", i, err)
		}
	}
}

func TestRequestFutureWaitTimesOutWithoutSettlement(t *testing.T) {
	r := NewRequests(4)
	buf := newTestBuffer()
	f, err := r.Put(buf)
	buf.Release()
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, waitErr := f.Wait(10 * time.Millisecond)
	if !errors.Is(waitErr, api.KindError(api.ErrKindTimeout)) {
		t.Fatalf("expected ErrKindTimeout, got %v", waitErr)
	}
	// Wait's own timeout does not settle the future; the slot is still
	// live until the table removes it (PutWithTimeout's Schedule callback,
	// or an eventual Complete/Fail).
	if f.Settled() {
		t.Fatal("Wait timing out must not settle the future itself")
	}
	r.Fail(f.CallID(), api.NewError(api.ErrKindTimeout, "request timed out", nil))
}

// TestPutWithTimeoutFiresOnLoopSchedule exercises the scheduled-timeout
// path end to end: nothing ever completes the future, so the loop's timer
// fires Fail on its own (spec §4.3 "Future timeout").
func TestPutWithTimeoutFiresOnLoopSchedule(t *testing.T) {
	loop, err := engine.New(0, api.ReactorPortable, engine.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		loop.Shutdown()
		loop.AwaitTermination(time.Second)
	}()

	r := NewRequests(4)
	buf := newTestBuffer()
	defer buf.Release()

	var f *RequestFuture
	var putErr error
	done := make(chan struct{})
	loop.Execute(func() {
		f, putErr = r.PutWithTimeout(buf, loop, 10*time.Millisecond)
		close(done)
	})
	<-done
	if putErr != nil {
		t.Fatalf("PutWithTimeout: %v", putErr)
	}

	_, waitErr := f.Wait(time.Second)
	if !errors.Is(waitErr, api.KindError(api.ErrKindTimeout)) {
		t.Fatalf("expected ErrKindTimeout, got %v", waitErr)
	}
}
