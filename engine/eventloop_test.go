// License: Apache-2.0

package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/tpcengine/api"
)

func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ThreadAffinity = -1
	l, err := New(0, api.ReactorPortable, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		l.Shutdown()
		if !l.AwaitTermination(time.Second) {
			t.Fatalf("loop did not terminate")
		}
	})
	return l
}

func TestExecuteWakesParkedLoopPromptly(t *testing.T) {
	l := newTestLoop(t)

	done := make(chan struct{})
	start := time.Now()
	if err := l.Execute(func() { close(done) }); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case <-done:
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Fatalf("cross-thread submit took %v, want < 50ms", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestExecuteOrdering(t *testing.T) {
	l := newTestLoop(t)

	var got []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		if err := l.Execute(func() {
			got = append(got, i)
			if i == 9 {
				close(done)
			}
		}); err != nil {
			t.Fatalf("Execute(%d): %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks never completed")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out-of-order execution: got %v", got)
		}
	}
}

func TestShutdownRejectsFurtherSubmission(t *testing.T) {
	cfg := DefaultConfig()
	l, err := New(0, api.ReactorPortable, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Shutdown()
	if !l.AwaitTermination(time.Second) {
		t.Fatal("loop did not terminate")
	}

	if err := l.Execute(func() {}); err == nil {
		t.Fatal("expected Execute on a terminated loop to fail")
	}
}

func TestWakeupIsNoopFromOwnerThread(t *testing.T) {
	l := newTestLoop(t)

	done := make(chan struct{})
	if err := l.Execute(func() {
		// Calling Wakeup from inside the loop's own goroutine must be a
		// cheap no-op (spec §8 boundary behavior), not a self-deadlock or
		// a redundant OS write.
		l.Wakeup()
		close(done)
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestScheduleMustRunOnOwnerThread(t *testing.T) {
	l := newTestLoop(t)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Schedule from a non-owner goroutine to panic")
		}
	}()
	l.Schedule(func() {}, time.Now().UnixNano())
}

func TestOfferLocalFastPathVsCrossThread(t *testing.T) {
	l := newTestLoop(t)

	var delivered int32
	l.SetOfferHandler(func(buf api.Buffer) {
		atomic.AddInt32(&delivered, 1)
	})

	done := make(chan struct{})
	if err := l.Execute(func() {
		// From the owner goroutine, Offer takes the local-deque fast path.
		if !l.Offer(nil) {
			t.Error("Offer from owner goroutine should report success")
		}
		close(done)
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	<-done

	// From this (non-owner) goroutine, Offer is routed through Execute.
	if !l.Offer(nil) {
		t.Error("Offer from non-owner goroutine should report success")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&delivered) == 2 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected 2 deliveries, got %d", atomic.LoadInt32(&delivered))
}

func TestTimerSchedulingFiresAtDeadline(t *testing.T) {
	l := newTestLoop(t)

	fired := make(chan struct{})
	if err := l.Execute(func() {
		l.Schedule(func() { close(fired) }, time.Now().Add(10*time.Millisecond).UnixNano())
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestShutdownCompletesRegisteredHooks(t *testing.T) {
	cfg := DefaultConfig()
	l, err := New(0, api.ReactorPortable, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hookRan := make(chan struct{})
	l.OnShutdown(func() { close(hookRan) })

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Shutdown()
	if !l.AwaitTermination(time.Second) {
		t.Fatal("loop did not terminate")
	}

	select {
	case <-hookRan:
	default:
		t.Fatal("shutdown hook never ran")
	}
}

func TestTpcEngineRoutesPartitionsAcrossLoops(t *testing.T) {
	e, err := NewTpcEngine(4, api.ReactorPortable, nil)
	if err != nil {
		t.Fatalf("NewTpcEngine: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		e.Shutdown()
		if !e.AwaitTermination(time.Second) {
			t.Fatal("engine did not terminate")
		}
	})

	if n := e.EventloopCount(); n != 4 {
		t.Fatalf("EventloopCount() = %d, want 4", n)
	}
	for p := 0; p < 100; p++ {
		loop := e.PartitionOwner(p)
		if loop != e.Eventloop(p%4) {
			t.Fatalf("PartitionOwner(%d) routed inconsistently", p)
		}
	}
}
