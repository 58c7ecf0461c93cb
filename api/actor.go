// License: Apache-2.0

package api

// Address identifies a cluster member that owns partitions. It is opaque to
// the engine; the partition-assignment directory and cluster membership
// system are external collaborators (spec §1 Non-goals) that produce and
// compare Addresses.
type Address interface {
	// String returns a stable, comparable textual form, e.g. "host:port".
	String() string
	// Equal reports whether two addresses name the same member.
	Equal(other Address) bool
}

// PartitionDirectory is the external collaborator that maps a partition id
// to the member currently owning it (spec §4.3, §9 "Partition directory").
// The engine never implements this; it is supplied by the embedding RPC
// application.
type PartitionDirectory interface {
	// PartitionOwner returns the current owner of partitionId, or false if
	// unknown (engine fails the request with ErrKindRouting in that case).
	PartitionOwner(partitionId int) (Address, bool)
}

// PeerConnection is the external collaborator providing the socket array to
// a remote member, so PartitionActorRef can pick one by
// hash(partitionId) mod SocketCount (spec §4.3).
type PeerConnection interface {
	// SocketCount returns the number of sockets in this connection's array.
	SocketCount() int
	// SocketAt returns the socket at the given index, hashed from a
	// partition id by the caller.
	SocketAt(index int) AsyncSocketRef
}

// AsyncSocketRef is the minimal surface PartitionActorRef needs from a
// socket to route a remote request, satisfied by *socket.AsyncSocket.
type AsyncSocketRef interface {
	WriteAndFlush(buf Buffer) bool
}

// ConnectionRegistry is the external collaborator mapping a cluster member
// Address to the PeerConnection (socket array) used to reach it (spec
// §4.3 "obtain the peer connection"). Like PartitionDirectory, the engine
// never implements this; it is supplied by the embedding RPC application,
// which owns connection establishment and reconnection policy.
type ConnectionRegistry interface {
	// Connection returns the PeerConnection for addr, or false if none is
	// currently established.
	Connection(addr Address) (PeerConnection, bool)
}
