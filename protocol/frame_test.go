// License: Apache-2.0

package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/momentics/tpcengine/api"
	"github.com/momentics/tpcengine/buffer"
)

func TestConstructCompleteRoundTrip(t *testing.T) {
	buf := buffer.New(HeaderSize + 5)
	BeginFrame(buf, 42)
	buf.WriteBytes([]byte("hello"))
	ConstructComplete(buf)

	buf.Flip()
	raw := buf.Bytes()
	frame, consumed, err := Decode(raw, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if consumed != HeaderSize+5 {
		t.Fatalf("consumed = %d, want %d", consumed, HeaderSize+5)
	}
	if frame.CallID != 42 {
		t.Fatalf("callID = %d, want 42", frame.CallID)
	}
	if frame.Flags&FlagComplete == 0 {
		t.Fatalf("expected FlagComplete set")
	}
	if !bytes.Equal(frame.Payload, []byte("hello")) {
		t.Fatalf("payload = %q, want %q", frame.Payload, "hello")
	}
}

func TestDecodeEmptyPayloadFrameIsValid(t *testing.T) {
	buf := buffer.New(HeaderSize)
	BeginFrame(buf, 1)
	ConstructComplete(buf)
	buf.Flip()
	frame, consumed, err := Decode(buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if consumed != HeaderSize {
		t.Fatalf("consumed = %d, want %d", consumed, HeaderSize)
	}
	if len(frame.Payload) != 0 {
		t.Fatalf("payload len = %d, want 0", len(frame.Payload))
	}
}

func TestDecodeNeverConsumesPartialFrame(t *testing.T) {
	full := EncodeOneShot(7, []byte("payload"))
	raw := full.Bytes()

	for _, n := range []int{0, 1, HeaderSize - 1, HeaderSize, len(raw) - 1} {
		frame, consumed, err := Decode(raw[:n], 0)
		if err != nil {
			t.Fatalf("decode(%d bytes): unexpected error %v", n, err)
		}
		if consumed != 0 {
			t.Fatalf("decode(%d bytes): consumed = %d, want 0 (partial)", n, consumed)
		}
		if frame.Payload != nil {
			t.Fatalf("decode(%d bytes): expected zero-value frame", n)
		}
	}
}

func TestDecodeRejectsUndersizedHeader(t *testing.T) {
	raw := make([]byte, HeaderSize)
	// frameSize field (offset 0) deliberately smaller than HeaderSize.
	raw[3] = 4
	_, _, err := Decode(raw, 0)
	if !errors.Is(err, api.KindError(api.ErrKindProtocol)) {
		t.Fatalf("expected ErrKindProtocol, got %v", err)
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	buf := EncodeOneShot(1, make([]byte, 100))
	_, _, err := Decode(buf.Bytes(), 50)
	if !errors.Is(err, api.KindError(api.ErrKindProtocol)) {
		t.Fatalf("expected ErrKindProtocol, got %v", err)
	}
}

func TestOneWayCallIDIsNegative(t *testing.T) {
	buf := EncodeOneShot(-1, nil)
	frame, _, err := Decode(buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !frame.IsOneWay() {
		t.Fatalf("expected one-way frame for callID -1")
	}
}
