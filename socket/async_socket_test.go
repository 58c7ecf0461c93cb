// License: Apache-2.0

package socket

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/tpcengine/api"
	"github.com/momentics/tpcengine/buffer"
	"github.com/momentics/tpcengine/engine"
	"github.com/momentics/tpcengine/protocol"
)

func newTestLoop(t *testing.T) *engine.EventLoop {
	t.Helper()
	l, err := engine.New(0, api.ReactorPortable, engine.DefaultConfig())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		l.Shutdown()
		l.AwaitTermination(time.Second)
	})
	return l
}

// freePort asks the kernel for an unused loopback TCP port, matching the
// teacher's own test convention of binding ":0" and reading back Addr()
// rather than hardcoding a port (avoids flaky port collisions between
// test runs).
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("freePort: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// TestEchoSyncFrames is the engine's rendition of
// spec §8 scenario 1: a server bound to loopback echoes 1000 frames back
// to a single client, in order.
func TestEchoSyncFrames(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	serverLoop := newTestLoop(t)
	clientLoop := newTestLoop(t)

	ln, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := ln.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := ln.Listen(16); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	if err := ln.Accept(serverLoop, func(conn *AsyncSocket) {
		acc := NewFrameAccumulator(conn, func(f protocol.Frame) {
			reply := protocol.EncodeOneShot(f.CallID, f.Payload)
			conn.WriteAndFlush(reply)
		}, func(error) {})
		conn.SetReadHandler(acc)
		if err := conn.Activate(serverLoop); err != nil {
			t.Errorf("server Activate: %v", err)
		}
	}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	client, err := Connect(addr)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	const total = 1000
	var mu sync.Mutex
	received := make([]int64, 0, total)
	done := make(chan struct{})

	acc := NewFrameAccumulator(client, func(f protocol.Frame) {
		mu.Lock()
		received = append(received, f.CallID)
		n := len(received)
		mu.Unlock()
		if n == total {
			close(done)
		}
	}, func(error) {})
	client.SetReadHandler(acc)
	if err := client.Activate(clientLoop); err != nil {
		t.Fatalf("client Activate: %v", err)
	}

	payload := []byte{0xff, 0xff, 0xff, 0xff} // int32 = -1
	for i := 0; i < total; i++ {
		frame := protocol.EncodeOneShot(int64(i), payload)
		if !client.WriteAndFlush(frame) {
			t.Fatalf("WriteAndFlush(%d) reported backpressure unexpectedly", i)
		}
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		mu.Lock()
		n := len(received)
		mu.Unlock()
		t.Fatalf("timed out waiting for echoes, received %d/%d", n, total)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != total {
		t.Fatalf("got %d responses, want %d", len(received), total)
	}
	for i, id := range received {
		if id != int64(i) {
			t.Fatalf("response %d arrived out of order: callID=%d", i, id)
		}
	}
}

// TestPingPongDecrement is the engine's rendition of spec §8
// scenario 2: client sends a decrementing counter, server echoes
// (counter-1), client keeps resending until it reaches zero.
func TestPingPongDecrement(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	serverLoop := newTestLoop(t)
	clientLoop := newTestLoop(t)

	ln, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := ln.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := ln.Listen(16); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	if err := ln.Accept(serverLoop, func(conn *AsyncSocket) {
		acc := NewFrameAccumulator(conn, func(f protocol.Frame) {
			counter := decodeInt32(f.Payload) - 1
			reply := protocol.EncodeOneShot(f.CallID, encodeInt32(counter))
			conn.WriteAndFlush(reply)
		}, func(error) {})
		conn.SetReadHandler(acc)
		if err := conn.Activate(serverLoop); err != nil {
			t.Errorf("server Activate: %v", err)
		}
	}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	client, err := Connect(addr)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var roundsLeft int32 = 1000
	done := make(chan struct{})

	acc := NewFrameAccumulator(client, func(f protocol.Frame) {
		counter := decodeInt32(f.Payload)
		if counter == 0 {
			close(done)
			return
		}
		reply := protocol.EncodeOneShot(f.CallID, encodeInt32(counter))
		client.WriteAndFlush(reply)
	}, func(error) {})
	client.SetReadHandler(acc)
	if err := client.Activate(clientLoop); err != nil {
		t.Fatalf("client Activate: %v", err)
	}

	first := protocol.EncodeOneShot(-1, encodeInt32(roundsLeft))
	client.WriteAndFlush(first)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("ping-pong did not reach zero within 10s")
	}
}

func encodeInt32(v int32) []byte {
	b := buffer.New(4)
	b.WriteInt32(v)
	b.SetPosition(0)
	return b.Bytes()
}

func decodeInt32(b []byte) int32 {
	return int32(b[0])<<24 | int32(b[1])<<16 | int32(b[2])<<8 | int32(b[3])
}

// TestBackpressureRejectsOverLimitWrites covers part of spec §8 scenario 5:
// with nothing flushed, Write reports false once the queued bytes reach the
// configured outbound limit. It does not check recovery after a flush or
// buffer release counts.
func TestBackpressureRejectsOverLimitWrites(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	serverLoop := newTestLoop(t)

	ln, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := ln.Bind(addr); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := ln.Listen(16); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	var accepted atomic.Bool
	if err := ln.Accept(serverLoop, func(conn *AsyncSocket) {
		accepted.Store(true)
		// Never read: forces the client's outbound queue to back up.
	}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	client, err := Connect(addr)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	client.SetMaxOutboundBytes(1024)
	clientLoop := newTestLoop(t)
	if err := client.Activate(clientLoop); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	large := make([]byte, 2048)
	ok := true
	for i := 0; i < 10 && ok; i++ {
		frame := protocol.EncodeOneShot(int64(i), large)
		ok = client.Write(frame)
	}
	if ok {
		t.Fatal("expected Write to report backpressure past the configured limit")
	}
}
