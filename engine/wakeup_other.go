//go:build !linux

// License: Apache-2.0

package engine

import "os"

// pipeWakeup is the portable wakeupSource fallback: a self-pipe, the
// classic technique on platforms without eventfd (the teacher's own
// "portable selector" design note names exactly this for its PORTABLE
// backend).
type pipeWakeup struct {
	r *os.File
	w *os.File
}

func newWakeupSource() (wakeupSource, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &pipeWakeup{r: r, w: w}, nil
}

func (p *pipeWakeup) FD() uintptr { return p.r.Fd() }

// Drain reads once: it is only called when the pipe reports readable, and a
// second read on the emptied pipe would block the loop until the next
// Notify. Bytes beyond one read stay pending and keep the fd readable.
func (p *pipeWakeup) Drain() {
	var buf [64]byte
	_, _ = p.r.Read(buf[:])
}

func (p *pipeWakeup) Notify() error {
	_, err := p.w.Write([]byte{1})
	return err
}

func (p *pipeWakeup) Close() error {
	werr := p.w.Close()
	rerr := p.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
