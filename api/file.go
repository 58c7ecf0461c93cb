// License: Apache-2.0

package api

// AsyncFile is the file-I/O analogue of AsyncSocket, named only at its
// interface (spec §1 "File I/O (AsyncFile) is mentioned only at its
// interface; its driver is a variant of the same scheduler pattern").
// No implementation lives in this module — it is out of scope (spec §1
// Non-goals) — but the shape mirrors AsyncSocket: a loop-affine handle
// whose read/write calls complete asynchronously through a callback
// rather than blocking the owning EventLoop.
type AsyncFile interface {
	// ReadAt schedules a read of buf's capacity at offset, invoking
	// handler with the byte count read (or an error) once the owning
	// loop's Reactor backend reports completion.
	ReadAt(buf Buffer, offset int64, handler func(n int, err error))

	// WriteAt schedules a write of buf's readable bytes at offset,
	// invoking handler once the write completes.
	WriteAt(buf Buffer, offset int64, handler func(n int, err error))

	// Close releases the underlying file descriptor.
	Close() error
}
