package bufferpool

import "github.com/e7canasta/vidframe/buffer"

// ExportBufferAsDmaBuf hands back an OS descriptor for buf's memory,
// caching the result on the buffer so repeat calls are free. Only pools
// backed by an allocator.DmaBufExporter (ContiguousDMA) can satisfy
// this; the Go structural-typing check stands in for the original's
// dynamic_cast<CMAAllocator*> plus allocator-name string check.
//
// Grounded on BufferPool::exportBufferAsDmaBuf.
func (p *Pool) ExportBufferAsDmaBuf(buf *buffer.Buffer) (int, error) {
	if fd := buf.DmaBufFd(); fd >= 0 {
		return int(fd), nil
	}

	exporter, ok := p.allocator.(interface {
		DmaBufFd(virtAddr []byte) (int, bool)
	})
	if !ok {
		return -1, newError(KindNotSupported, "pool %q's allocator %q does not export dma-buf fds", p.name, p.allocator.Name())
	}

	fd, ok := exporter.DmaBufFd(buf.VirtualAddress())
	if !ok {
		return -1, newError(KindLifetimeViolation, "buffer #%d has no backing dma-buf region", buf.ID())
	}

	buf.PoolSetDmaBufFd(int32(fd))
	return fd, nil
}
