// License: Apache-2.0

// Package engine implements the thread-per-core event loop runtime: the
// EventLoop main loop, its three pluggable Reactor backends
// (completion-ring, readiness, portable), and TpcEngine, the process-wide
// handle that constructs and owns a fixed set of loops (spec §1-§4.1, §6).
//
// Grounded on the teacher's internal/concurrency/eventloop.go (batched,
// lock-free-ish poller shape: atomic running flag, handler dispatch, graceful
// stop) and reactor/epoll_reactor.go (the epoll syscall sequence), rewritten
// around this spec's seven-step cooperative algorithm and its
// wakeupNeeded/event-fd cross-thread handshake, which the teacher's
// channel-based loop does not implement (see DESIGN.md).
package engine
