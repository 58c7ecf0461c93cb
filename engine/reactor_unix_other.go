//go:build !linux && !windows

// License: Apache-2.0

package engine

import "github.com/momentics/tpcengine/api"

// newReadinessReactor falls back to the portable poll-based reactor on
// unix platforms without epoll (e.g. darwin, *bsd): no kqueue backend is
// implemented, matching the teacher's own platform coverage (epoll and
// IOCP only; no kqueue file exists anywhere in the pack).
func newReadinessReactor() (api.Reactor, error) { return newPollReactor() }

func newPortableReactor() (api.Reactor, error) { return newPollReactor() }
