//go:build !(linux && io_uring)

// License: Apache-2.0

package engine

import "github.com/momentics/tpcengine/api"

// newCompletionRingReactor is unavailable unless the binary was built with
// the `io_uring` build tag on linux, mirroring the teacher's own
// transport_linux_uring.go gating (`linux && io_uring`): the raw-syscall
// ring setup is opt-in, not a default dependency of every build.
func newCompletionRingReactor(cfg Config) (api.Reactor, error) {
	return nil, api.NewError(api.ErrKindIO,
		"completion_ring reactor requires building with -tags io_uring on linux", nil)
}
