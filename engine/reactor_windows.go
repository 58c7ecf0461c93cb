//go:build windows

// License: Apache-2.0

package engine

import (
	"errors"

	"github.com/momentics/tpcengine/api"
)

// unsupportedReactor mirrors the teacher's own reactor/reactor_stub.go
// texture for platforms it does not fully support: every operation fails
// with a clear error rather than silently behaving incorrectly. A real
// Windows backend (IOCP for completion-ring, WSAPoll for readiness/
// portable) is future work; the teacher's own iocp_reactor.go is itself an
// acknowledged "demo skeleton" (see its Unregister comment), so it was not
// adapted verbatim (see DESIGN.md).
type unsupportedReactor struct {
	kind api.ReactorKind
}

func (r *unsupportedReactor) Kind() api.ReactorKind { return r.kind }
func (r *unsupportedReactor) Register(fd uintptr, events api.FDEventType, cb api.FDCallback) error {
	return errors.New("engine: reactor backend not implemented on windows")
}
func (r *unsupportedReactor) Modify(fd uintptr, events api.FDEventType) error {
	return errors.New("engine: reactor backend not implemented on windows")
}
func (r *unsupportedReactor) Unregister(fd uintptr) error { return nil }
func (r *unsupportedReactor) Submit() error               { return nil }
func (r *unsupportedReactor) Wait(timeoutNanos int64) (int, error) {
	return 0, errors.New("engine: reactor backend not implemented on windows")
}
func (r *unsupportedReactor) Close() error { return nil }

func newReadinessReactor() (api.Reactor, error) {
	return &unsupportedReactor{kind: api.ReactorReadiness}, nil
}

func newPortableReactor() (api.Reactor, error) {
	return &unsupportedReactor{kind: api.ReactorPortable}, nil
}
