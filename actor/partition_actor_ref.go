// License: Apache-2.0

package actor

import (
	"github.com/momentics/tpcengine/api"
	"github.com/momentics/tpcengine/engine"
	"github.com/momentics/tpcengine/protocol"
)

// PartitionActorRef is the client-facing send primitive (spec §2, §4.3):
// given a partition id and a request payload, it either enqueues on the
// owning local loop or writes to the right remote socket, and returns a
// RequestFuture correlated by call id.
//
// Grounded on the Java original's PartitionActorRef.submit (see
// original_source/hazelcast and SPEC_FULL.md §4 "SUPPLEMENTED FEATURES"),
// restated against this engine's explicit TpcEngine/EventLoop/Reactor
// types instead of the source's thread-confined runtime.
type PartitionActorRef struct {
	engine    *engine.TpcEngine
	directory api.PartitionDirectory
	registry  api.ConnectionRegistry
	selfAddr  api.Address
	requests  *Requests
}

// NewPartitionActorRef wires the five collaborators spec §4.3
// names: the engine (for local loopIndex routing), the partition
// directory, the connection registry (remote socket lookup), this node's
// own address (to distinguish local vs. remote delivery), and the
// caller's Requests slot table. Requests is owned by loop 0 (spec §5
// "Requests slot table is owned by a single client loop"), so that loop's
// shutdown hook is wired to fail every outstanding future with
// ErrKindShutdown (spec §8 scenario 6), making the guarantee automatic
// instead of left to the embedding application to remember.
func NewPartitionActorRef(
	tpc *engine.TpcEngine,
	directory api.PartitionDirectory,
	registry api.ConnectionRegistry,
	selfAddr api.Address,
	requests *Requests,
) *PartitionActorRef {
	tpc.Eventloop(0).OnShutdown(func() {
		requests.FailAll(api.NewError(api.ErrKindShutdown, "engine is shutting down", nil))
	})
	return &PartitionActorRef{
		engine:    tpc,
		directory: directory,
		registry:  registry,
		selfAddr:  selfAddr,
		requests:  requests,
	}
}

// Submit delivers payload addressed to partitionId and returns a
// RequestFuture that settles with the response (or a failure) (spec §4.3
// "Algorithm"). The frame is built exactly once, carrying the call id
// Requests allocated for it, and that single frame is what the slot
// keeps a reference on (spec §9 Open Question — see DESIGN.md).
func (r *PartitionActorRef) Submit(partitionID int, payload []byte) (*RequestFuture, error) {
	callID := r.requests.NextCallID()
	frame := protocol.EncodeOneShot(callID, payload)
	future, err := r.requests.Register(callID, frame)
	if err != nil {
		frame.Release()
		return nil, err
	}

	addr, ok := r.directory.PartitionOwner(partitionID)
	if !ok {
		r.requests.Fail(future.CallID(), api.NewError(api.ErrKindRouting, "partition owner unknown", nil))
		frame.Release()
		return future, nil
	}

	if addr.Equal(r.selfAddr) {
		loopIndex := partitionID % r.engine.EventloopCount()
		if loopIndex < 0 {
			loopIndex += r.engine.EventloopCount()
		}
		loop := r.engine.Eventloop(loopIndex)
		if !loop.Offer(frame) {
			r.requests.Fail(future.CallID(), api.NewError(api.ErrKindShutdown, "target loop is shutting down", nil))
			frame.Release()
		}
		return future, nil
	}

	conn, ok := r.registry.Connection(addr)
	if !ok {
		r.requests.Fail(future.CallID(), api.NewError(api.ErrKindRouting, "no connection to partition owner", nil))
		frame.Release()
		return future, nil
	}
	socketIndex := partitionID % conn.SocketCount()
	if socketIndex < 0 {
		socketIndex += conn.SocketCount()
	}
	sock := conn.SocketAt(socketIndex)
	// The socket acquires its own reference when it queues the frame and
	// releases it on write completion; the slot's reference (acquired in
	// Requests.Register) is what keeps the frame alive for response
	// correlation (spec §9 Open Question).
	if !sock.WriteAndFlush(frame) {
		r.requests.Fail(future.CallID(), api.NewError(api.ErrKindConnectionLost, "remote write rejected (backpressure or closed)", nil))
	}
	frame.Release()
	return future, nil
}
