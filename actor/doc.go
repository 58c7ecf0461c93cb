// License: Apache-2.0

// Package actor implements partition-affine actor dispatch (spec §4.3):
// PartitionActorRef routes a request buffer to the event loop or remote
// socket that owns its partition, and RequestFuture/Requests correlate
// replies back to the original caller.
//
// Grounded on the original Java source's PartitionActorRef.submit (see
// original_source/hazelcast), generalized from its thread-confined
// assumptions to this engine's explicit EventLoop/Reactor model, and on
// go.uber.org/atomic's typed counters (adopted from another pack repo, not
// the teacher; see DESIGN.md) for the correlation id generator.
package actor
