// License: Apache-2.0

package engine

import (
	"fmt"
	"os"

	"github.com/momentics/tpcengine/api"
)

// StderrLogger is a ready-made api.Logger: plain fmt.Fprintf to stderr,
// matching the teacher's control/debug.go texture (no logging library
// anywhere in its go.mod). It is not the default; DefaultConfig and New
// use api.NopLogger unless a Logger is injected.
type StderrLogger struct {
	Prefix string
}

func (l StderrLogger) Debugf(format string, args ...any) { l.write("DEBUG", format, args...) }
func (l StderrLogger) Warnf(format string, args ...any)  { l.write("WARN", format, args...) }
func (l StderrLogger) Errorf(format string, args ...any) { l.write("ERROR", format, args...) }

func (l StderrLogger) write(level, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[%s] %s%s\n", level, l.Prefix, fmt.Sprintf(format, args...))
}

var _ api.Logger = StderrLogger{}
