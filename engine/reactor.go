// License: Apache-2.0

package engine

import "github.com/momentics/tpcengine/api"

// newReactor constructs the Reactor backend named by kind (spec §4.1
// "Reactor backends"). Each concrete constructor lives in a platform/
// build-tag-specific file, following the teacher's own per-platform
// reactor split (reactor/reactor_linux.go, reactor_windows.go,
// reactor_stub.go).
func newReactor(kind api.ReactorKind, cfg Config) (api.Reactor, error) {
	switch kind {
	case api.ReactorCompletionRing:
		return newCompletionRingReactor(cfg)
	case api.ReactorReadiness:
		return newReadinessReactor()
	case api.ReactorPortable:
		return newPortableReactor()
	default:
		return nil, api.NewError(api.ErrKindIO, "unknown reactor kind", nil)
	}
}
