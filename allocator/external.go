package allocator

// External marks a pool as never allocating or freeing memory itself:
// every buffer's memory is supplied by the caller. Grounded on
// BufferAllocator.cpp's ExternalAllocator: Allocate is a programming
// error, Deallocate is a no-op.
type External struct{}

var _ Allocator = External{}

// Allocate implements Allocator. It always fails: external buffers must
// be provided by the caller, never manufactured here.
func (External) Allocate(size int) ([]byte, uint64, error) {
	return nil, 0, ErrExternalAllocate
}

// Deallocate implements Allocator. It is a no-op: ownership belongs to
// the caller.
func (External) Deallocate(virtAddr []byte) {}

// Name implements Allocator.
func (External) Name() string { return "External" }
