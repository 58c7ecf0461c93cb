// License: Apache-2.0

package api

// FDEventType is a bitmask of readiness conditions a Reactor reports.
type FDEventType uint8

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

// FDCallback is invoked by a Reactor when a registered fd becomes ready (or
// errors). It always runs on the Reactor's owning goroutine.
type FDCallback func(fd uintptr, events FDEventType)

// ReactorKind selects which OS multiplexing backend an EventLoop uses
// (spec §3 EventLoop.type).
type ReactorKind int

const (
	// ReactorCompletionRing is an io_uring-style completion-queue backend.
	ReactorCompletionRing ReactorKind = iota
	// ReactorReadiness is an epoll-style readiness-queue backend.
	ReactorReadiness
	// ReactorPortable is a select/poll-based backend usable on any platform.
	ReactorPortable
)

func (k ReactorKind) String() string {
	switch k {
	case ReactorCompletionRing:
		return "completion_ring"
	case ReactorReadiness:
		return "readiness"
	case ReactorPortable:
		return "portable"
	default:
		return "unknown"
	}
}

// Reactor is the common interface implemented by all three OS multiplexing
// backends (spec §4.1 "Reactor backends"). An EventLoop owns exactly one
// Reactor and drives it from a single goroutine.
type Reactor interface {
	// Kind reports which backend this is.
	Kind() ReactorKind

	// Register associates fd with cb for the given interest set. Must be
	// called only from the owning goroutine.
	Register(fd uintptr, events FDEventType, cb FDCallback) error

	// Modify updates the interest set for an already-registered fd.
	Modify(fd uintptr, events FDEventType) error

	// Unregister removes fd from the watch set.
	Unregister(fd uintptr) error

	// Submit flushes any queued-but-not-yet-submitted operations without
	// blocking (spec step 2: "submit pending kernel ops without waiting").
	Submit() error

	// Wait blocks for at most timeoutNanos (< 0 means block indefinitely,
	// 0 means return immediately) and returns the number of fds serviced
	// via their registered FDCallback during the call.
	Wait(timeoutNanos int64) (int, error)

	// Close releases the reactor's own OS resources (epoll fd, ring fd, ...).
	Close() error
}
