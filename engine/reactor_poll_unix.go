//go:build !windows

// License: Apache-2.0

package engine

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/tpcengine/api"
)

// pollReactor is the PORTABLE backend (spec §4.1 "a selector over
// non-blocking sockets"): unix.Poll over every registered fd. It is also
// used as the READINESS backend on unix platforms without epoll.
//
// Grounded on the teacher's reactor/reactor_linux.go Register/Wait shape,
// generalized from epoll-specific event bits to the portable POLLIN/
// POLLOUT bitmask golang.org/x/sys/unix exposes identically across unix
// platforms.
type pollReactor struct {
	mu        sync.Mutex
	fds       []unix.PollFd
	callbacks map[uintptr]api.FDCallback
	interest  map[uintptr]api.FDEventType
}

func newPollReactor() (api.Reactor, error) {
	return &pollReactor{
		callbacks: make(map[uintptr]api.FDCallback),
		interest:  make(map[uintptr]api.FDEventType),
	}, nil
}

func (r *pollReactor) Kind() api.ReactorKind { return api.ReactorPortable }

func (r *pollReactor) Register(fd uintptr, events api.FDEventType, cb api.FDCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[fd]; exists {
		return api.NewError(api.ErrKindIO, "fd already registered", nil)
	}
	r.callbacks[fd] = cb
	r.interest[fd] = events
	r.rebuildLocked()
	return nil
}

func (r *pollReactor) Modify(fd uintptr, events api.FDEventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[fd]; !exists {
		return api.NewError(api.ErrKindIO, "fd not registered", nil)
	}
	r.interest[fd] = events
	r.rebuildLocked()
	return nil
}

func (r *pollReactor) Unregister(fd uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, fd)
	delete(r.interest, fd)
	r.rebuildLocked()
	return nil
}

// rebuildLocked regenerates the unix.PollFd slice from the interest map;
// called with mu held. Registration only happens from the owning loop
// goroutine in practice, but the mutex keeps this reactor independently
// safe to use.
func (r *pollReactor) rebuildLocked() {
	r.fds = r.fds[:0]
	for fd, ev := range r.interest {
		var mask int16
		if ev&api.EventRead != 0 {
			mask |= unix.POLLIN
		}
		if ev&api.EventWrite != 0 {
			mask |= unix.POLLOUT
		}
		r.fds = append(r.fds, unix.PollFd{Fd: int32(fd), Events: mask})
	}
}

func (r *pollReactor) Submit() error { return nil }

func (r *pollReactor) Wait(timeoutNanos int64) (int, error) {
	timeoutMs := -1
	if timeoutNanos >= 0 {
		timeoutMs = int(timeoutNanos / 1_000_000)
	}

	r.mu.Lock()
	fds := make([]unix.PollFd, len(r.fds))
	copy(fds, r.fds)
	r.mu.Unlock()

	if len(fds) == 0 {
		if timeoutMs < 0 {
			return 0, api.NewError(api.ErrKindIO, "poll reactor: no fds registered and asked to block indefinitely", nil)
		}
		return 0, nil
	}

	_, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	serviced := 0
	for _, pf := range fds {
		if pf.Revents == 0 {
			continue
		}
		var events api.FDEventType
		if pf.Revents&unix.POLLIN != 0 {
			events |= api.EventRead
		}
		if pf.Revents&unix.POLLOUT != 0 {
			events |= api.EventWrite
		}
		if pf.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			events |= api.EventError
		}
		if events == 0 {
			continue
		}
		r.mu.Lock()
		cb, ok := r.callbacks[uintptr(pf.Fd)]
		r.mu.Unlock()
		if !ok {
			continue
		}
		serviced++
		cb(uintptr(pf.Fd), events)
	}
	return serviced, nil
}

func (r *pollReactor) Close() error { return nil }
