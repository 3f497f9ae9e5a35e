package bufferpool

import "github.com/e7canasta/vidframe/buffer"

// ValidateBuffer reports whether buf is currently safe to hand out: it
// belongs to this pool, passes its own basic validity check, and, for
// externally owned buffers, its liveness tracker (if any) still reports
// alive. Grounded on BufferPool::validateBuffer.
func (p *Pool) ValidateBuffer(buf *buffer.Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.validateBufferLocked(buf)
}

func (p *Pool) validateBufferLocked(buf *buffer.Buffer) error {
	if buf == nil {
		return newError(KindInvalidInput, "buffer is nil")
	}
	if !buf.IsValid() {
		return newError(KindLifetimeViolation, "buffer #%d failed basic validity check", buf.ID())
	}
	if owned, ok := p.idMap[buf.ID()]; !ok || owned != buf {
		return newError(KindProtocolViolation, "buffer #%d does not belong to pool %q", buf.ID(), p.name)
	}

	if buf.Ownership() == buffer.External && p.trackers != nil {
		if tracker, ok := p.trackers[buf.ID()]; ok && !tracker.Alive() {
			return newError(KindLifetimeViolation, "buffer #%d's external owner has released its memory", buf.ID())
		}
	}
	return nil
}

// ValidateAllBuffers runs ValidateBuffer over the pool's entire current
// population and returns the buffer ids that failed.
func (p *Pool) ValidateAllBuffers() []uint32 {
	p.mu.Lock()
	ids := make([]uint32, 0, len(p.idMap))
	bufs := make([]*buffer.Buffer, 0, len(p.idMap))
	for id, b := range p.idMap {
		ids = append(ids, id)
		bufs = append(bufs, b)
	}
	p.mu.Unlock()

	var invalid []uint32
	for i, b := range bufs {
		if err := p.ValidateBuffer(b); err != nil {
			invalid = append(invalid, ids[i])
		}
	}
	return invalid
}

// verifyOwnershipLocked is the O(1) membership check BufferPool.cpp's
// verifyBufferOwnership performs before accepting a buffer back from a
// caller, so a buffer acquired from pool A can never be submitted or
// released into pool B.
func (p *Pool) verifyOwnershipLocked(buf *buffer.Buffer) error {
	if buf == nil {
		return newError(KindInvalidInput, "buffer is nil")
	}
	if owned, ok := p.idMap[buf.ID()]; !ok || owned != buf {
		return newError(KindProtocolViolation, "buffer #%d does not belong to pool %q", buf.ID(), p.name)
	}
	return nil
}
