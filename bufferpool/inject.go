package bufferpool

import "github.com/e7canasta/vidframe/buffer"

// InjectFilledBuffer wraps an externally decoded frame as a transient
// buffer and pushes it directly to the filled queue, for the
// dynamic-injection construction mode. Unlike the C++ origin, which
// enforces no capacity bound at all on injection, this pool rejects the
// injection with ErrQueueFull once maxCapacity is reached, so an
// unbounded producer cannot grow the pool without limit.
//
// Grounded on BufferPool::injectFilledBuffer.
func (p *Pool) InjectFilledBuffer(h *buffer.Handle) (*buffer.Buffer, error) {
	if h == nil || !h.IsValid() {
		return nil, ErrInvalidHandle
	}

	p.transientMu.Lock()
	defer p.transientMu.Unlock()

	p.mu.Lock()
	if p.maxCapacity > 0 && len(p.idMap) >= p.maxCapacity {
		p.mu.Unlock()
		return nil, ErrQueueFull
	}
	p.mu.Unlock()

	id := p.nextBufferID.Add(1) - 1
	buf := buffer.New(id, h.VirtualAddress(), h.PhysicalAddress(), buffer.External)
	buf.PoolSetState(buffer.ReadyForConsume)

	p.transientBuffers[buf] = struct{}{}
	p.transientHandles[buf] = h

	p.mu.Lock()
	p.idMap[id] = buf
	p.filledQueue = append(p.filledQueue, buf)
	p.mu.Unlock()

	p.filledCond.Signal()
	return buf, nil
}

// EjectBuffer removes a transient buffer from the pool and closes its
// backing handle, running the handle's deleter exactly once. Returns
// false if buf was never transient (a no-op, matching
// BufferPool::ejectBuffer's contract).
func (p *Pool) EjectBuffer(buf *buffer.Buffer) bool {
	p.transientMu.Lock()
	h, ok := p.transientHandles[buf]
	if !ok {
		p.transientMu.Unlock()
		return false
	}
	delete(p.transientHandles, buf)
	delete(p.transientBuffers, buf)
	p.transientMu.Unlock()

	p.mu.Lock()
	delete(p.idMap, buf.ID())
	p.mu.Unlock()

	h.Close()
	return true
}

func (p *Pool) isTransient(buf *buffer.Buffer) bool {
	p.transientMu.Lock()
	defer p.transientMu.Unlock()
	_, ok := p.transientBuffers[buf]
	return ok
}
