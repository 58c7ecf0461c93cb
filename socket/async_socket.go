// License: Apache-2.0

package socket

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/tpcengine/api"
	"github.com/momentics/tpcengine/engine"
	"github.com/momentics/tpcengine/protocol"
)

// DefaultOutboundByteLimit is the soft backpressure ceiling on an
// AsyncSocket's outbound queue (spec §4.2 "outbound queue has a soft byte
// limit").
const DefaultOutboundByteLimit = 4 << 20 // 4 MiB

// DefaultRecvBufferSize is the fixed size of a socket's receive buffer;
// each read hands at most this many bytes to the read handler, which
// buffers frames larger than that across calls (see FrameAccumulator).
const DefaultRecvBufferSize = 64 << 10

// pendingWrite is one outbound buffer plus how much of it has already been
// written (spec §4.2 "on partial write, the cursor advances").
type pendingWrite struct {
	buf     api.Buffer
	written int
}

// AsyncSocket is a connection-oriented byte duplex bound to exactly one
// EventLoop (spec §4.2). All its callbacks run on that loop; Write/Flush/
// WriteAndFlush are the only methods safe to call from other goroutines:
// Write guards the outbound queue with a mutex, and Flush posts the drain
// through the loop's Execute.
type AsyncSocket struct {
	fd uintptr

	loop        *engine.EventLoop
	readHandler api.ReadHandler

	tcpNoDelay bool

	recvBuf []byte

	outMu            sync.Mutex
	outQueue         []pendingWrite
	outboundBytes    int64
	maxOutboundBytes int64

	closed atomic.Bool

	maxFrameSize int
}

var _ api.AsyncSocketRef = (*AsyncSocket)(nil)

// NewAsyncSocket wraps an already-created, non-blocking socket fd (spec §6
// "AsyncSocket.open() -> c"). Connect and Accept below are the two ways
// such an fd is normally produced.
func NewAsyncSocket(fd uintptr) *AsyncSocket {
	return &AsyncSocket{
		fd:               fd,
		recvBuf:          make([]byte, DefaultRecvBufferSize),
		maxOutboundBytes: DefaultOutboundByteLimit,
		maxFrameSize:     protocol.DefaultMaxFrameSize,
	}
}

// Connect creates a new non-blocking TCP socket and initiates a connection
// to addr ("host:port"), returning it immediately. Connection completion is
// not reported as an event of its own: Activate registers read interest
// only, and writes queued before the connection is up are retried on
// writable readiness (spec §6 "c.connect(addr) -> future"; this engine
// surfaces that future as the socket's first OnRead/OnClose callback rather
// than a distinct type, since the read handler is always required before
// activation anyway).
func Connect(addr string) (*AsyncSocket, error) {
	sa, err := parseHostPort(addr)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, api.NewError(api.ErrKindIO, "socket", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, api.NewError(api.ErrKindIO, "set nonblock", err)
	}
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, api.NewError(api.ErrKindIO, "connect", err)
	}
	return NewAsyncSocket(uintptr(fd)), nil
}

// SetTCPNoDelay toggles Nagle's algorithm (spec §6 "c.tcpNoDelay(bool)").
// Must be called before Activate.
func (s *AsyncSocket) SetTCPNoDelay(v bool) error {
	s.tcpNoDelay = v
	return unix.SetsockoptInt(int(s.fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(v))
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// SetReadHandler installs the frame consumer. Must be set before Activate
// (spec §4.2 "readHandler(h) — must be set before activate").
func (s *AsyncSocket) SetReadHandler(h api.ReadHandler) { s.readHandler = h }

// SetMaxOutboundBytes overrides DefaultOutboundByteLimit.
func (s *AsyncSocket) SetMaxOutboundBytes(n int64) { s.maxOutboundBytes = n }

// SetMaxFrameSize overrides protocol.DefaultMaxFrameSize for a
// FrameAccumulator constructed with NewFrameAccumulator(s).
func (s *AsyncSocket) SetMaxFrameSize(n int) { s.maxFrameSize = n }

// MaxFrameSize reports the configured frame size ceiling.
func (s *AsyncSocket) MaxFrameSize() int { return s.maxFrameSize }

// Activate binds this socket to loop and registers it for read readiness
// (spec §4.2 "activate(loop) — binds and registers; registration must be
// performed on the loop's thread (posted via execute if called from
// elsewhere)").
func (s *AsyncSocket) Activate(loop *engine.EventLoop) error {
	s.loop = loop
	register := func() error {
		if err := loop.Reactor().Register(s.fd, api.EventRead, s.onReactorEvent); err != nil {
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

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// onReactorEvent is the single FDCallback registered with the Reactor; it
// always runs on the owning loop's goroutine (api.Reactor contract).
func (s *AsyncSocket) onReactorEvent(fd uintptr, events api.FDEventType) {
	if events&api.EventError != 0 {
		s.closeWithCause(api.NewError(api.ErrKindIO, "reactor reported fd error", nil))
		return
	}
	if events&api.EventRead != 0 {
		s.handleReadable()
	}
	if events&api.EventWrite != 0 {
		s.drainOutbound()
	}
}

// handleReadable delivers each chunk read off the wire straight to the read
// handler, which is responsible for buffering any trailing partial frame
// itself across calls (spec §4.2 "the read handler ... must decode zero or
// more complete frames ... returns when the buffer no longer holds a full
// frame"); FrameAccumulator below is the engine's own such implementation,
// built on protocol.Decode.
func (s *AsyncSocket) handleReadable() {
	for {
		n, err := unix.Read(int(s.fd), s.recvBuf)
		if n > 0 && s.readHandler != nil {
			s.readHandler.OnRead(s.recvBuf[:n])
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			s.closeWithCause(api.NewError(api.ErrKindIO, "read", err))
			return
		}
		if n == 0 {
			s.closeWithCause(nil)
			return
		}
		if n < len(s.recvBuf) {
			// Short read: the kernel has no more to give us right now.
			return
		}
	}
}

// Write appends buf to the outbound queue (spec §6 "c.write(buf)"); it
// returns false if the socket is closed or the outbound byte limit has
// been exceeded (spec §4.2 "Backpressure"). The caller retains its own
// reference; Write acquires one for the queue.
func (s *AsyncSocket) Write(buf api.Buffer) bool {
	if s.closed.Load() {
		return false
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outboundBytes >= s.maxOutboundBytes {
		return false
	}
	n := buf.Limit() - buf.Position()
	s.outQueue = append(s.outQueue, pendingWrite{buf: buf.Acquire()})
	s.outboundBytes += int64(n)
	return true
}

// Flush requests that pending writes be drained (spec §6 "c.flush()"):
// inline from the owning thread, posted via Execute otherwise.
func (s *AsyncSocket) Flush() bool {
	if s.closed.Load() {
		return false
	}
	if s.loop.IsOwnerThread() {
		s.drainOutbound()
		return true
	}
	return s.loop.Execute(func() { s.drainOutbound() }) == nil
}

// WriteAndFlush is Write followed by Flush (spec §6 "c.writeAndFlush(buf)").
func (s *AsyncSocket) WriteAndFlush(buf api.Buffer) bool {
	if !s.Write(buf) {
		return false
	}
	return s.Flush()
}

// UnsafeWriteAndFlush is legal only from the owning loop's goroutine; it
// skips the cross-thread Execute hop Flush would otherwise take (spec §4.2
// "unsafeWriteAndFlush(buf) — legal only from the owning loop thread").
func (s *AsyncSocket) UnsafeWriteAndFlush(buf api.Buffer) bool {
	if !s.loop.IsOwnerThread() {
		panic("socket: UnsafeWriteAndFlush called from a non-owner goroutine")
	}
	if !s.Write(buf) {
		return false
	}
	s.drainOutbound()
	return true
}

// drainOutbound writes as much of the queue as the kernel will currently
// accept, advancing each entry's cursor on a partial write and releasing a
// buffer exactly once all of its bytes have been written (spec §4.2 "Write
// path"). Runs only on the owning loop's goroutine.
func (s *AsyncSocket) drainOutbound() {
	var writeErr error

	s.outMu.Lock()
	for len(s.outQueue) > 0 {
		pw := &s.outQueue[0]
		data := pw.buf.Bytes()[pw.written:]
		if len(data) == 0 {
			pw.buf.Release()
			s.outQueue = s.outQueue[1:]
			continue
		}
		n, err := unix.Write(int(s.fd), data)
		if n > 0 {
			pw.written += n
			s.outboundBytes -= int64(n)
		}
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				writeErr = err
			}
			break
		}
		if pw.written == pw.buf.Limit()-pw.buf.Position() {
			pw.buf.Release()
			s.outQueue = s.outQueue[1:]
		}
	}
	remaining := len(s.outQueue)
	s.outMu.Unlock()

	if writeErr != nil {
		s.closeWithCause(api.NewError(api.ErrKindIO, "write", writeErr))
		return
	}
	if remaining > 0 {
		_ = s.loop.Reactor().Modify(s.fd, api.EventRead|api.EventWrite)
	} else {
		_ = s.loop.Reactor().Modify(s.fd, api.EventRead)
	}
}

// Close idempotently releases the fd and every queued buffer (spec §4.2
// "close() — idempotent; releases fd; releases queued buffers via
// release()").
func (s *AsyncSocket) Close() error {
	s.closeWithCause(nil)
	return nil
}

func (s *AsyncSocket) closeWithCause(cause error) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.loop != nil {
		_ = s.loop.Reactor().Unregister(s.fd)
		s.loop.UnregisterClosable(s.fd)
	}
	unix.Close(int(s.fd))

	s.outMu.Lock()
	pending := s.outQueue
	s.outQueue = nil
	s.outMu.Unlock()
	for _, pw := range pending {
		pw.buf.Release()
	}

	if s.readHandler != nil {
		s.readHandler.OnClose(cause)
	}
}
