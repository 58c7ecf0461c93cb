// License: Apache-2.0

package api

// Logger is the minimal ad hoc logging surface the engine injects into its
// components, matching the teacher's own texture: no structured logging
// dependency appears anywhere in its go.mod, only fmt.Fprintf(os.Stderr,
// ...)-style debug output (control/debug.go and the reactor backends). We
// keep that shape as an interface instead of a bare global so tests can
// substitute a silent or capturing implementation.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards everything; it is the default when no Logger is
// injected.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
