// License: Apache-2.0

// Package affinity pins the calling OS thread to a CPU core so an
// EventLoop's goroutine stays resident on one core for the lifetime of the
// loop (spec §3 EventLoop.thread, §6 "threadAffinity").
//
// Grounded on the teacher repo's own non-cgo fallback path
// (internal/concurrency/affinity_linux_pure.go, affinity_nocgo.go): rather
// than the teacher's primary cgo+libnuma binding, we use the pure-Go
// golang.org/x/sys/unix affinity syscalls exercised elsewhere in the pack
// (e.g. the epoll/eventfd calls in JemmyH-gogoredis's poller package) so the
// engine has no cgo build requirement. See DESIGN.md.
package affinity

import "runtime"

// Pin locks the calling goroutine to its current OS thread and attempts to
// restrict that thread to cpuID. On platforms without a pinning
// implementation this locks the OS thread but leaves scheduling unconstrained.
func Pin(cpuID int) error {
	runtime.LockOSThread()
	if cpuID < 0 {
		return nil
	}
	return pinCurrentThread(cpuID)
}

// Unpin releases the OS thread lock taken by Pin.
func Unpin() {
	runtime.UnlockOSThread()
}
