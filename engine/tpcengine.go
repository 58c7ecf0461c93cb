// License: Apache-2.0

package engine

import (
	"sync"
	"time"

	"github.com/momentics/tpcengine/api"
)

// TpcEngine is the process-wide handle that constructs loops, exposes
// eventloop(index), and coordinates lifecycle (spec §2 "The TpcEngine is
// the process-wide handle ..."). Grounded on the teacher's own top-level
// facade constructs (the pack's various Hub/Pool wrapper types that own N
// worker goroutines and fan Start/Shutdown out across them), generalized
// to E homogeneous EventLoops instead of a fixed connection pool.
type TpcEngine struct {
	loops []*EventLoop

	mu      sync.Mutex
	started bool
}

// NewTpcEngine constructs count event loops, all of the given reactor
// kind, indexed 0..count-1. loopCfg(i), if non-nil, is called once per loop
// so callers can vary per-loop settings such as ThreadAffinity (spec §3
// "one loop per physical core").
func NewTpcEngine(count int, kind api.ReactorKind, loopCfg func(index int) Config) (*TpcEngine, error) {
	if count <= 0 {
		return nil, api.NewError(api.ErrKindIO, "engine: loop count must be positive", nil)
	}
	loops := make([]*EventLoop, 0, count)
	for i := 0; i < count; i++ {
		cfg := DefaultConfig()
		if loopCfg != nil {
			cfg = loopCfg(i)
		}
		l, err := New(i, kind, cfg)
		if err != nil {
			for _, started := range loops {
				started.Shutdown()
				started.AwaitTermination(0)
			}
			return nil, err
		}
		loops = append(loops, l)
	}
	return &TpcEngine{loops: loops}, nil
}

// EventloopCount reports how many loops this engine owns (spec §6
// "TpcEngine.eventloopCount() -> int").
func (e *TpcEngine) EventloopCount() int { return len(e.loops) }

// Eventloop returns the loop at index i (spec §6 "TpcEngine.eventloop(i)
// -> EventLoop"). Panics on an out-of-range index: loop indices are a
// compile-time-known, externally validated range, not user input.
func (e *TpcEngine) Eventloop(i int) *EventLoop { return e.loops[i] }

// PartitionOwner maps a partition id to its owning loop by modulo hashing
// (spec §5 "hash(partitionId) mod E").
func (e *TpcEngine) PartitionOwner(partitionID int) *EventLoop {
	n := len(e.loops)
	idx := partitionID % n
	if idx < 0 {
		idx += n
	}
	return e.loops[idx]
}

// Start starts every loop. If any loop fails to start, the already-started
// loops are shut down and the first error is returned.
func (e *TpcEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return api.NewError(api.ErrKindShutdown, "engine already started", nil)
	}
	for i, l := range e.loops {
		if err := l.Start(); err != nil {
			for j := 0; j < i; j++ {
				e.loops[j].Shutdown()
				e.loops[j].AwaitTermination(0)
			}
			return err
		}
	}
	e.started = true
	return nil
}

// Shutdown requests termination of every loop; it does not block.
func (e *TpcEngine) Shutdown() {
	for _, l := range e.loops {
		l.Shutdown()
	}
}

// AwaitTermination blocks on each loop's own AwaitTermination, budgeting d
// in total across all loops, and reports whether every loop terminated in
// time.
func (e *TpcEngine) AwaitTermination(d time.Duration) bool {
	deadline := time.Now().Add(d)
	ok := true
	for _, l := range e.loops {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		if !l.AwaitTermination(remaining) {
			ok = false
		}
	}
	return ok
}
