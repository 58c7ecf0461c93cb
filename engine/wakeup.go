// License: Apache-2.0

package engine

// wakeupSource is the single cross-thread synchronization primitive an
// EventLoop uses to return from a blocked reactor.Wait (spec §4.1
// "wakeupNeeded ... with a self-pipe/event-fd write"). Notify must be safe
// to call from any goroutine; Drain and FD are only ever used on the
// loop's owning goroutine (FD is registered with the Reactor so a pending
// notification shows up as ordinary readiness).
type wakeupSource interface {
	// FD returns the descriptor to register with the Reactor for
	// EventRead interest.
	FD() uintptr
	// Drain consumes any pending wakeup signal so the fd stops reading
	// ready; called from the registered FDCallback.
	Drain()
	// Notify causes a parked Wait to return. Safe from any goroutine.
	Notify() error
	// Close releases the underlying OS resource.
	Close() error
}
