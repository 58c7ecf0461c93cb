// License: Apache-2.0

package engine

import "github.com/momentics/tpcengine/api"

// Config holds the recognized environment/config options for an EventLoop
// (spec §6 "Environment/config"). It is constructed programmatically by the
// embedding application; CLI/env-var parsing is an explicit external
// collaborator (spec §1 Non-goals).
//
// Grounded in shape on the Java original's IOUringEventloop.IOUringConfiguration
// and on the teacher's control/config.go — but not on that file's code: a
// dynamic, hot-reloadable map[string]any store doesn't fit a config that is
// read once at loop construction and never mutated afterward (see
// DESIGN.md).
type Config struct {
	// Spin, if true, never parks: the loop busy-polls its reactor instead
	// of blocking in step 3 of the main loop algorithm.
	Spin bool

	// ThreadAffinity pins the loop's owning OS thread to this CPU index.
	// A negative value leaves the thread unpinned.
	ThreadAffinity int

	// RingBufferSize sizes the completion-ring backend's submission/
	// completion queues; ignored by the readiness and portable backends.
	RingBufferSize int

	// IOSeqAsyncThreshold is carried as a completion-ring tuning value; no
	// backend in this module reads it, and the completion-ring backend does
	// not batch submissions by it.
	IOSeqAsyncThreshold int

	// Flags is carried as a completion-ring tuning value; the completion-
	// ring backend does not pass it to io_uring_setup, which it always calls
	// with IORING_SETUP_CLAMP only.
	Flags uint32

	// IOSchedulerCapacity is the queue depth of the pluggable file-I/O
	// scheduler behind api.AsyncFile (spec §6 "ioRequestScheduler"); no
	// AsyncFile implementation lives in this module (spec §1 Non-goals),
	// this field only sizes an embedder's own scheduler.
	IOSchedulerCapacity int

	// LocalQueueCapacity is advisory only: the local task deque
	// (eapache/queue.Queue) is created with its own default size and grows
	// as needed, so this value does not size it.
	LocalQueueCapacity int

	// ConcurrentQueueCapacity sizes the MPSC concurrentRunQueue; a value
	// that is not a power of two is rounded up to the next one.
	ConcurrentQueueCapacity int

	// MaxConcurrentDrain bounds how many tasks are drained from the
	// concurrentRunQueue per iteration, so a saturated submit queue cannot
	// starve I/O processing (spec §4.1 step 4).
	MaxConcurrentDrain int

	// Logger receives ad hoc diagnostic output (spec's ambient stack
	// section: a minimal injected Logger, matching the teacher's own
	// fmt.Fprintf(os.Stderr, ...) texture). Defaults to api.NopLogger{}.
	Logger api.Logger
}

// DefaultConfig returns the engine's default tuning.
func DefaultConfig() Config {
	return Config{
		ThreadAffinity:          -1,
		RingBufferSize:          256,
		IOSeqAsyncThreshold:     8,
		IOSchedulerCapacity:     512,
		LocalQueueCapacity:      128,
		ConcurrentQueueCapacity: 1024,
		MaxConcurrentDrain:      256,
		Logger:                  api.NopLogger{},
	}
}
