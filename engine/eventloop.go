// License: Apache-2.0

// File: engine/eventloop.go
//
// EventLoop is the core cooperative scheduler described in spec §4.1: a
// single owner goroutine that multiplexes a Reactor backend, a local task
// deque, a cross-thread MPSC submit queue and a deadline-ordered timer set,
// parking only when there is truly nothing to do.
package engine

import (
	"runtime"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/atomic"

	"github.com/momentics/tpcengine/api"
	"github.com/momentics/tpcengine/internal/affinity"
	qmpsc "github.com/momentics/tpcengine/internal/queue"
	"github.com/momentics/tpcengine/internal/timer"
)

// EventLoop owns one Reactor and runs it from exactly one goroutine pinned
// (when ThreadAffinity >= 0) to one OS thread for the loop's lifetime
// (spec §3 EventLoop).
type EventLoop struct {
	index int
	kind  api.ReactorKind
	cfg   Config

	reactor api.Reactor
	wakeup  wakeupSource

	state        atomic.Int32
	wakeupNeeded atomic.Bool

	concurrentRunQueue *qmpsc.MPSC[Task]
	localTasks         *queue.Queue
	timers             *timer.Set

	scheduler Scheduler

	offerHandler atomic.Value // OfferHandler

	ownerTID      int
	tidSupported  bool
	ownerTIDReady atomic.Bool

	closablesMu sync.Mutex
	closables   map[uintptr]closer

	shutdownHooksMu sync.Mutex
	shutdownHooks   []func()

	clock func() int64

	started    chan struct{}
	terminated chan struct{}

	termErr error
}

type closer interface {
	Close() error
}

// New constructs an EventLoop of the given index and reactor kind, but does
// not start it; call Start to spawn its owning goroutine.
func New(index int, kind api.ReactorKind, cfg Config) (*EventLoop, error) {
	reactor, err := newReactor(kind, cfg)
	if err != nil {
		return nil, err
	}
	wk, err := newWakeupSource()
	if err != nil {
		reactor.Close()
		return nil, err
	}

	concurrentCap := cfg.ConcurrentQueueCapacity
	if concurrentCap <= 0 {
		concurrentCap = 1024
	}
	localCap := cfg.LocalQueueCapacity
	if localCap <= 0 {
		localCap = 128
	}

	l := &EventLoop{
		index:              index,
		kind:               kind,
		cfg:                cfg,
		reactor:            reactor,
		wakeup:             wk,
		concurrentRunQueue: qmpsc.NewMPSC[Task](nextPow2(concurrentCap)),
		localTasks:         queue.New(),
		timers:             timer.NewSet(),
		scheduler:          noopScheduler{},
		closables:          make(map[uintptr]closer),
		clock:              func() int64 { return time.Now().UnixNano() },
		started:            make(chan struct{}),
		terminated:         make(chan struct{}),
	}
	l.state.Store(int32(StateNew))
	if err := reactor.Register(wk.FD(), api.EventRead, l.onWakeupReadable); err != nil {
		reactor.Close()
		wk.Close()
		return nil, err
	}
	_ = localCap // eapache/queue.New grows dynamically; capacity is advisory only.
	if l.cfg.Logger == nil {
		l.cfg.Logger = api.NopLogger{}
	}
	return l, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Index reports this loop's position within its TpcEngine.
func (l *EventLoop) Index() int { return l.index }

// Kind reports which Reactor backend this loop runs.
func (l *EventLoop) Kind() api.ReactorKind { return l.kind }

// State reports the current lifecycle state.
func (l *EventLoop) State() LoopState { return LoopState(l.state.Load()) }

// SetScheduler installs the user cooperative work hook. Must be called
// before Start.
func (l *EventLoop) SetScheduler(s Scheduler) {
	if s == nil {
		s = noopScheduler{}
	}
	l.scheduler = s
}

// SetOfferHandler installs the callback Offer delivers buffers to. Safe to
// call before Start; changing it after Start is racy with in-flight Offer
// calls and not supported.
func (l *EventLoop) SetOfferHandler(h OfferHandler) {
	l.offerHandler.Store(h)
}

// IsOwnerThread reports whether the calling goroutine is running on this
// loop's owning OS thread. On platforms without a cheap thread-id probe it
// always returns false, which is always safe (callers fall back to the
// cross-thread path).
func (l *EventLoop) IsOwnerThread() bool {
	if !l.ownerTIDReady.Load() {
		return false
	}
	tid, ok := gettid()
	return ok && tid == l.ownerTID
}

// Start spawns the loop's owning goroutine and blocks until its first
// iteration is about to begin.
func (l *EventLoop) Start() error {
	if !l.state.CompareAndSwap(int32(StateNew), int32(StateRunning)) {
		return api.NewError(api.ErrKindShutdown, "event loop already started", nil)
	}
	go l.run()
	<-l.started
	return nil
}

// Execute enqueues task on the cross-thread concurrentRunQueue, waking the
// loop if it is (or is about to be) parked. Safe from any goroutine.
func (l *EventLoop) Execute(task Task) error {
	if l.State() == StateShutdown || l.State() == StateTerminated {
		return api.NewError(api.ErrKindShutdown, "event loop is shutting down", nil)
	}
	if !l.concurrentRunQueue.Enqueue(task) {
		return api.NewError(api.ErrKindIO, "concurrentRunQueue is full", nil)
	}
	if l.wakeupNeeded.CompareAndSwap(true, false) {
		_ = l.wakeup.Notify()
	}
	return nil
}

// Offer delivers buf to the loop's OfferHandler (spec §4.3). From the
// owning goroutine it is pushed directly onto the local task deque; from
// any other goroutine it is routed through Execute.
func (l *EventLoop) Offer(buf api.Buffer) bool {
	var task Task = func() {
		if h, _ := l.offerHandler.Load().(OfferHandler); h != nil {
			h(buf)
		}
	}
	if l.IsOwnerThread() {
		l.localTasks.Add(task)
		return true
	}
	return l.Execute(task) == nil
}

// Schedule inserts task to run at deadlineNanos. Only callable from the
// owning goroutine (spec §4.1); calling it elsewhere is a programming
// error and panics (spec §7 "fatal assertions").
func (l *EventLoop) Schedule(task Task, deadlineNanos int64) timer.Handle {
	if !l.IsOwnerThread() {
		panic("engine: Schedule called from a non-owner goroutine")
	}
	return l.timers.Schedule(deadlineNanos, func() { task() })
}

// Wakeup is an idempotent cross-thread nudge; a no-op when called from the
// owner thread (spec §8 boundary behavior).
func (l *EventLoop) Wakeup() {
	if l.IsOwnerThread() {
		return
	}
	if l.wakeupNeeded.CompareAndSwap(true, false) {
		_ = l.wakeup.Notify()
	}
}

// Shutdown requests termination; it does not block. AwaitTermination waits
// for the loop's goroutine to actually exit.
func (l *EventLoop) Shutdown() {
	for {
		s := LoopState(l.state.Load())
		if s == StateShutdown || s == StateTerminated {
			return
		}
		if l.state.CompareAndSwap(int32(s), int32(StateShutdown)) {
			break
		}
	}
	l.Wakeup()
}

// AwaitTermination blocks until the loop's goroutine has fully exited, or
// d elapses first.
func (l *EventLoop) AwaitTermination(d time.Duration) bool {
	select {
	case <-l.terminated:
		return true
	case <-time.After(d):
		return false
	}
}

// OnShutdown registers fn to run once, on the loop's goroutine, after the
// loop exits its main iteration but before its own resources are released.
// Used by the actor package's Requests table to fail in-flight futures
// (spec §8 "every outstanding future is completed with Shutdown").
func (l *EventLoop) OnShutdown(fn func()) {
	l.shutdownHooksMu.Lock()
	l.shutdownHooks = append(l.shutdownHooks, fn)
	l.shutdownHooksMu.Unlock()
}

// RegisterClosable ties fd's lifetime to this loop: Close is called during
// shutdown if the caller has not already unregistered it (spec §5 "File
// descriptors are owned by the loop that registered them").
func (l *EventLoop) RegisterClosable(fd uintptr, c closer) {
	l.closablesMu.Lock()
	l.closables[fd] = c
	l.closablesMu.Unlock()
}

// UnregisterClosable removes a previously registered closable, e.g. after
// an ordinary (non-shutdown) close.
func (l *EventLoop) UnregisterClosable(fd uintptr) {
	l.closablesMu.Lock()
	delete(l.closables, fd)
	l.closablesMu.Unlock()
}

// Reactor exposes the loop's Reactor backend so the socket package can
// Register/Modify/Unregister fds on it. Only safe to call from the owning
// goroutine, or before Start.
func (l *EventLoop) Reactor() api.Reactor { return l.reactor }

func (l *EventLoop) onWakeupReadable(fd uintptr, events api.FDEventType) {
	l.wakeup.Drain()
}

// run is the loop's main algorithm (spec §4.1), executed on its own
// goroutine for its entire lifetime.
func (l *EventLoop) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if l.cfg.ThreadAffinity >= 0 {
		_ = affinity.Pin(l.cfg.ThreadAffinity)
	}
	if tid, ok := gettid(); ok {
		l.ownerTID = tid
		l.ownerTIDReady.Store(true)
	}
	close(l.started)

	moreWork := false
	for l.State() == StateRunning {
		serviced, err := l.reactor.Wait(0) // step 1: non-blocking drain of completions/readiness
		if err != nil {
			l.cfg.Logger.Errorf("loop %d: reactor wait failed, terminating: %v", l.index, err)
			l.termErr = err
			break
		}

		if serviced == 0 {
			if l.cfg.Spin || moreWork {
				// step 2: submit pending kernel ops without waiting.
				if err := l.reactor.Submit(); err != nil {
					l.termErr = err
					break
				}
			} else {
				// step 3: arm-then-recheck handshake.
				l.wakeupNeeded.Store(true)
				if l.concurrentRunQueue.Empty() {
					timeout := int64(-1)
					if dl, ok := l.timers.EarliestDeadline(); ok {
						timeout = dl - l.clock()
						if timeout < 0 {
							timeout = 0
						}
					}
					if _, err := l.reactor.Wait(timeout); err != nil {
						l.wakeupNeeded.Store(false)
						l.termErr = err
						break
					}
				} else {
					if err := l.reactor.Submit(); err != nil {
						l.wakeupNeeded.Store(false)
						l.termErr = err
						break
					}
				}
				l.wakeupNeeded.Store(false)
			}
		}

		l.timers.RunExpired(l.clock()) // fire expired deadlines before draining tasks

		l.drainConcurrent()            // step 4
		moreWork = l.scheduler.Tick()  // step 5
		l.drainLocal()                 // step 6
	}

	l.shutdownResources()
	l.state.Store(int32(StateTerminated))
	close(l.terminated)
}

func (l *EventLoop) drainConcurrent() {
	max := l.cfg.MaxConcurrentDrain
	if max <= 0 {
		max = 256
	}
	for i := 0; i < max; i++ {
		task, ok := l.concurrentRunQueue.Dequeue()
		if !ok {
			return
		}
		task()
	}
}

func (l *EventLoop) drainLocal() {
	n := l.localTasks.Length()
	for i := 0; i < n; i++ {
		v := l.localTasks.Remove()
		if task, ok := v.(Task); ok {
			task()
		}
	}
}

func (l *EventLoop) shutdownResources() {
	l.shutdownHooksMu.Lock()
	hooks := l.shutdownHooks
	l.shutdownHooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	l.closablesMu.Lock()
	toClose := make([]closer, 0, len(l.closables))
	for _, c := range l.closables {
		toClose = append(toClose, c)
	}
	l.closables = make(map[uintptr]closer)
	l.closablesMu.Unlock()
	for _, c := range toClose {
		_ = c.Close()
	}

	_ = l.reactor.Unregister(l.wakeup.FD())
	_ = l.wakeup.Close()
	_ = l.reactor.Close()
}
