// License: Apache-2.0

package socket

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/tpcengine/api"
	"github.com/momentics/tpcengine/engine"
)

// AcceptHandler receives each newly accepted connection. It runs on the
// server socket's owning loop; it is responsible for calling Activate
// (possibly onto a different loop than the server's own) before the
// connection can do anything useful.
type AcceptHandler func(conn *AsyncSocket)

// AsyncServerSocket listens and accepts (spec §4.2 "AsyncServerSocket"):
// accepted connections become AsyncSocket instances the AcceptHandler
// activates onto a target loop, which need not be the server's own.
//
// Grounded on the teacher's transport/tcp/listener.go accept-loop shape,
// generalized from its fixed websocket upgrade path to a bare handoff of
// the accepted fd.
type AsyncServerSocket struct {
	fd   uintptr
	loop *engine.EventLoop

	handler AcceptHandler
	closed  atomic.Bool
}

// Open creates a new non-blocking listening socket (spec §6
// "AsyncServerSocket.open(loop) -> s").
func Open() (*AsyncServerSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, api.NewError(api.ErrKindIO, "socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, api.NewError(api.ErrKindIO, "setsockopt SO_REUSEADDR", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, api.NewError(api.ErrKindIO, "set nonblock", err)
	}
	return &AsyncServerSocket{fd: uintptr(fd)}, nil
}

// SetReuseAddress is a no-op past Open, which always sets SO_REUSEADDR;
// exposed so callers porting code that explicitly toggles it compile
// unchanged (grounded on the teacher's listener.go exposing the same
// socket option as a named setter rather than an implicit default).
func (s *AsyncServerSocket) SetReuseAddress(bool) {}

// Bind binds the listening socket to addr ("host:port").
func (s *AsyncServerSocket) Bind(addr string) error {
	sa, err := parseHostPort(addr)
	if err != nil {
		return err
	}
	if err := unix.Bind(int(s.fd), sa); err != nil {
		return api.NewError(api.ErrKindIO, "bind", err)
	}
	return nil
}

// Listen marks the socket as listening with the given backlog.
func (s *AsyncServerSocket) Listen(backlog int) error {
	if err := unix.Listen(int(s.fd), backlog); err != nil {
		return api.NewError(api.ErrKindIO, "listen", err)
	}
	return nil
}

// Accept registers handler and binds the server socket to loop, which
// drives the accept loop (spec §6 "s.accept(handler)"). Registration, like
// AsyncSocket.Activate, must happen on loop's own goroutine.
func (s *AsyncServerSocket) Accept(loop *engine.EventLoop, handler AcceptHandler) error {
	s.loop = loop
	s.handler = handler
	register := func() error {
		if err := loop.Reactor().Register(s.fd, api.EventRead, s.onAcceptable); err != nil {
			return err
		}
		loop.RegisterClosable(s.fd, closerFunc(func() error { return s.Close() }))
		return nil
	}
	if loop.IsOwnerThread() {
		return register()
	}
	done := make(chan error, 1)
	if err := loop.Execute(func() { done <- register() }); err != nil {
		return err
	}
	return <-done
}

func (s *AsyncServerSocket) onAcceptable(fd uintptr, events api.FDEventType) {
	for {
		connFd, _, err := unix.Accept4(int(s.fd), unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			return
		}
		conn := NewAsyncSocket(uintptr(connFd))
		if s.handler != nil {
			s.handler(conn)
		}
	}
}

// Close idempotently releases the listening fd.
func (s *AsyncServerSocket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.loop != nil {
		_ = s.loop.Reactor().Unregister(s.fd)
		s.loop.UnregisterClosable(s.fd)
	}
	return unix.Close(int(s.fd))
}
