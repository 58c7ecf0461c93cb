//go:build linux

// License: Apache-2.0

package engine

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/tpcengine/api"
)

// epollReactor is the READINESS backend on Linux (spec §4.1 "epoll-style").
//
// Grounded on the teacher's reactor/epoll_reactor.go (EpollCreate1/EpollCtl/
// EpollWait sequence and its fd->callback map), ported from syscall to
// golang.org/x/sys/unix (the pack's idiom for raw Linux syscalls elsewhere,
// e.g. internal/transport/transport_linux_uring.go) and generalized so
// Modify and level-triggered read/write interest match api.Reactor instead
// of the teacher's read-only websocket registration.
type epollReactor struct {
	epfd int

	mu        sync.Mutex
	callbacks map[uintptr]api.FDCallback
}

func newReadinessReactor() (api.Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollReactor{epfd: epfd, callbacks: make(map[uintptr]api.FDCallback)}, nil
}

func (r *epollReactor) Kind() api.ReactorKind { return api.ReactorReadiness }

func epollMask(events api.FDEventType) uint32 {
	var m uint32
	if events&api.EventRead != 0 {
		m |= unix.EPOLLIN
	}
	if events&api.EventWrite != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func (r *epollReactor) Register(fd uintptr, events api.FDEventType, cb api.FDCallback) error {
	ev := &unix.EpollEvent{Events: epollMask(events), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), ev); err != nil {
		return err
	}
	r.mu.Lock()
	r.callbacks[fd] = cb
	r.mu.Unlock()
	return nil
}

func (r *epollReactor) Modify(fd uintptr, events api.FDEventType) error {
	ev := &unix.EpollEvent{Events: epollMask(events), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(fd), ev)
}

func (r *epollReactor) Unregister(fd uintptr) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	r.mu.Lock()
	delete(r.callbacks, fd)
	r.mu.Unlock()
	// The fd may already have been closed by the caller, which implicitly
	// drops it from epoll: EBADF/ENOENT here is not an error worth
	// surfacing (spec design note: "unknown fds are deregistered
	// defensively").
	if err == unix.EBADF || err == unix.ENOENT {
		return nil
	}
	return err
}

func (r *epollReactor) Submit() error { return nil }

func (r *epollReactor) Wait(timeoutNanos int64) (int, error) {
	timeoutMs := -1
	if timeoutNanos >= 0 {
		timeoutMs = int(timeoutNanos / 1_000_000)
	}

	var events [128]unix.EpollEvent
	n, err := unix.EpollWait(r.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	serviced := 0
	for i := 0; i < n; i++ {
		fd := uintptr(events[i].Fd)
		var et api.FDEventType
		if events[i].Events&unix.EPOLLIN != 0 {
			et |= api.EventRead
		}
		if events[i].Events&unix.EPOLLOUT != 0 {
			et |= api.EventWrite
		}
		if events[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			et |= api.EventError
		}
		r.mu.Lock()
		cb, ok := r.callbacks[fd]
		r.mu.Unlock()
		if !ok {
			continue
		}
		serviced++
		cb(fd, et)
	}
	return serviced, nil
}

func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}

func newPortableReactor() (api.Reactor, error) { return newPollReactor() }
