// License: Apache-2.0

// Package protocol implements the wire frame format the engine uses to
// carry requests and responses over AsyncSocket (spec §6 "Wire frame").
//
// Layout (big-endian):
//
//	offset 0   int32  frameSize  (total bytes, >= HeaderSize)
//	offset 4   int32  flags      (bit 0 = FlagComplete; others reserved)
//	offset 8   int64  callID     (< 0 = one-way/benchmark)
//	offset 16  byte[] payload    (frameSize - HeaderSize bytes)
//
// Grounded on the teacher's protocol/frame_codec.go (zero-copy decode over a
// length-prefixed byte window with an explicit size-limit guard) rewritten
// against this spec's fixed 16-byte RPC header instead of RFC 6455's
// variable-length masked WebSocket header: the two formats share nothing
// byte-for-byte, so the WebSocket encode/decode pair was not adapted (see
// DESIGN.md).
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/tpcengine/api"
	"github.com/momentics/tpcengine/buffer"
)

// HeaderSize is the fixed frame header length in bytes.
const HeaderSize = 16

// FlagComplete marks a frame whose size prefix has been finalized by
// ConstructComplete and is safe to hand to a socket for emission.
const FlagComplete uint32 = 1 << 0

// DefaultMaxFrameSize bounds a single frame's total size against
// accidental or hostile unbounded allocation; 0 on Decode disables the
// check. Grounded on the teacher's protocol.MaxFramePayload guard.
const DefaultMaxFrameSize = 16 << 20 // 16 MiB

// Frame is a logical, zero-copy view over a decoded wire frame: Payload
// aliases the caller's byte slice and is only valid until the next Decode
// call over the same receive buffer.
type Frame struct {
	Flags   uint32
	CallID  int64
	Payload []byte
}

// IsOneWay reports whether this frame carries no reply expectation (spec
// §3 "callId < 0 denotes a one-way or unsolicited frame").
func (f Frame) IsOneWay() bool { return f.CallID < 0 }

// BeginFrame writes a placeholder header (size=0, flags=0) and the given
// callID at buf's current position (which must be 0), advancing past
// HeaderSize bytes so the caller can append payload bytes next. Call
// ConstructComplete once the payload is fully written.
func BeginFrame(buf *buffer.IOBuffer, callID int64) {
	buf.WriteInt32(0)
	buf.WriteInt32(0)
	buf.WriteInt64(callID)
}

// ConstructComplete patches the frame's size prefix with buf's current
// Position (the total bytes written so far, header included) and sets
// FlagComplete. This MUST be invoked before handing buf to a socket for
// emission (spec §4.2 "Frame codec").
func ConstructComplete(buf *buffer.IOBuffer) {
	size := int32(buf.Position())
	buf.PutInt32At(0, size)
	buf.PutInt32At(4, int32(FlagComplete))
}

// Decode attempts to parse one complete frame from the front of raw.
//
// It never consumes a partial frame (spec §4.2, §8): if fewer than
// HeaderSize bytes, or fewer than the declared frameSize bytes, are
// present, it returns ok=false with consumed=0 so the caller can wait for
// more bytes. A malformed header (size < HeaderSize, or size exceeding
// maxFrameSize when maxFrameSize > 0) is reported as a *api.Error of kind
// ErrKindProtocol; the caller must close the offending socket (spec §7).
func Decode(raw []byte, maxFrameSize int) (frame Frame, consumed int, err error) {
	if len(raw) < HeaderSize {
		return Frame{}, 0, nil
	}
	size := int32(binary.BigEndian.Uint32(raw[0:4]))
	if size < HeaderSize {
		return Frame{}, 0, api.NewError(api.ErrKindProtocol,
			fmt.Sprintf("frame size %d below header size %d", size, HeaderSize), nil)
	}
	if maxFrameSize > 0 && int(size) > maxFrameSize {
		return Frame{}, 0, api.NewError(api.ErrKindProtocol,
			fmt.Sprintf("frame size %d exceeds max %d", size, maxFrameSize), nil)
	}
	if len(raw) < int(size) {
		return Frame{}, 0, nil
	}
	flags := binary.BigEndian.Uint32(raw[4:8])
	callID := int64(binary.BigEndian.Uint64(raw[8:16]))
	return Frame{Flags: flags, CallID: callID, Payload: raw[HeaderSize:size]}, int(size), nil
}

// EncodeOneShot builds a standalone, complete frame from a payload in one
// call: useful for tests and for one-way sends that don't need an
// incrementally-written IOBuffer. The returned buffer is refcount 1 and
// unpooled.
func EncodeOneShot(callID int64, payload []byte) *buffer.IOBuffer {
	buf := buffer.New(HeaderSize + len(payload))
	BeginFrame(buf, callID)
	buf.WriteBytes(payload)
	ConstructComplete(buf)
	buf.SetPosition(0)
	return buf
}
