// License: Apache-2.0

// Package api collects the interfaces and error taxonomy shared across
// package boundaries: Buffer/Allocator (buffer.go, pool.go), Reactor
// (reactor.go), ReadHandler (socket.go), PartitionDirectory/PeerConnection
// (actor.go) and the ErrorKind taxonomy (errors.go). Concrete
// implementations live in the buffer, socket, engine (which also holds the
// Reactor backends) and actor packages; api gives them one shared set of
// these types, though some of them still import one another directly.
package api
