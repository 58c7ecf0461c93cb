// License: Apache-2.0

// Package socket implements AsyncSocket and AsyncServerSocket, the
// connection-oriented duplex bound to exactly one EventLoop (spec §4.2).
//
// Grounded on the teacher's transport/netconn.go and transport/tcp/
// listener.go for the non-blocking accept/connect/read/write shape, ported
// from a fixed RFC 6455 handshake to the engine's own length-prefixed frame
// codec (protocol.Decode/ConstructComplete) and from the teacher's
// goroutine-per-connection model to loop-affine, single-goroutine callback
// dispatch (spec §4.2 "All callbacks execute on that loop").
package socket
