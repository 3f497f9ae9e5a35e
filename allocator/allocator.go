package allocator

import "errors"

// ErrOutOfMemory is returned when the backing allocator cannot satisfy a
// request.
var ErrOutOfMemory = errors.New("allocator: out of memory")

// ErrExternalAllocate is returned by the External allocator's Allocate,
// which must never be called: external buffers are supplied by the
// caller, not manufactured by the pool.
var ErrExternalAllocate = errors.New("allocator: External.Allocate must not be called, buffers are caller-supplied")

// Allocator acquires and releases a single memory region under some
// policy. Implementations must be safe for concurrent use by multiple
// callers.
type Allocator interface {
	// Allocate reserves size bytes and returns its virtual address plus,
	// when the platform can expose one, its physical address (0 if
	// unknown). It fails with ErrOutOfMemory when the backing allocator
	// cannot satisfy the request.
	Allocate(size int) (virtAddr []byte, physAddr uint64, err error)

	// Deallocate releases a region previously returned by Allocate. It is
	// idempotent on a nil virtAddr; passing a slice this allocator did not
	// return is undefined.
	Deallocate(virtAddr []byte)

	// Name identifies the policy for diagnostics and registry reporting.
	Name() string
}

// DmaBufExporter is implemented by allocators that can hand back an OS
// descriptor for a previously allocated region, for BufferPool's
// ExportBufferAsDmaBuf.
type DmaBufExporter interface {
	DmaBufFd(virtAddr []byte) (fd int, ok bool)
}
