//go:build linux

// License: Apache-2.0

package engine

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// eventfdWakeup is a wakeupSource backed by Linux eventfd(2), the same
// primitive the teacher's reactor backends use for their always-armed
// wakeup read (reactor/epoll_reactor.go grounding).
type eventfdWakeup struct {
	fd int
}

func newWakeupSource() (wakeupSource, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &eventfdWakeup{fd: fd}, nil
}

func (w *eventfdWakeup) FD() uintptr { return uintptr(w.fd) }

func (w *eventfdWakeup) Drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err == nil || err == unix.EAGAIN {
			return
		}
		if err == unix.EINTR {
			continue
		}
		return
	}
}

func (w *eventfdWakeup) Notify() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(w.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			// eventfd counter saturated: a wakeup is already pending.
			return nil
		}
		return err
	}
}

func (w *eventfdWakeup) Close() error {
	return unix.Close(w.fd)
}
