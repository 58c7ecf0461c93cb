// License: Apache-2.0

package socket

import "github.com/momentics/tpcengine/protocol"

// FrameHandler is invoked once per complete frame decoded by a
// FrameAccumulator.
type FrameHandler func(frame protocol.Frame)

// FrameAccumulator is the engine's own api.ReadHandler implementation: it
// buffers whatever trailing partial frame remains after each OnRead call
// and hands complete frames to a FrameHandler in arrival order (spec §4.2
// "Read path" / §8 "a receive buffer containing fewer than 16 bytes must
// not invoke frame consumption").
//
// Not safe for concurrent use; an AsyncSocket only ever calls OnRead/
// OnClose from its owning loop's goroutine, which is the only goroutine
// that should touch a FrameAccumulator.
type FrameAccumulator struct {
	maxFrameSize int
	onFrame      FrameHandler
	onClose      func(cause error)

	pending []byte
}

// NewFrameAccumulator builds a FrameAccumulator sized from sock's
// configured MaxFrameSize.
func NewFrameAccumulator(sock *AsyncSocket, onFrame FrameHandler, onClose func(cause error)) *FrameAccumulator {
	return &FrameAccumulator{
		maxFrameSize: sock.MaxFrameSize(),
		onFrame:      onFrame,
		onClose:      onClose,
	}
}

// OnRead implements api.ReadHandler.
func (a *FrameAccumulator) OnRead(buf []byte) {
	a.pending = append(a.pending, buf...)

	offset := 0
	for {
		frame, n, err := protocol.Decode(a.pending[offset:], a.maxFrameSize)
		if err != nil {
			if a.onClose != nil {
				a.onClose(err)
			}
			a.pending = a.pending[:0]
			return
		}
		if n == 0 {
			break
		}
		if a.onFrame != nil {
			a.onFrame(frame)
		}
		offset += n
	}

	if offset == 0 {
		return
	}
	remaining := len(a.pending) - offset
	copy(a.pending, a.pending[offset:])
	a.pending = a.pending[:remaining]
}

// OnClose implements api.ReadHandler.
func (a *FrameAccumulator) OnClose(cause error) {
	if a.onClose != nil {
		a.onClose(cause)
	}
}
