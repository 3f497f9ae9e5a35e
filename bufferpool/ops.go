package bufferpool

import (
	"sync"
	"time"

	"github.com/e7canasta/vidframe/buffer"
)

// Blocking selects whether Acquire* waits for availability.
type Blocking int

const (
	// NonBlocking returns immediately if no buffer is available.
	NonBlocking Blocking = iota
	// BlockingWithTimeout waits up to the given timeout.
	BlockingWithTimeout
)

// AcquireFree takes one buffer from the free queue for a producer to
// fill. When mode is BlockingWithTimeout and the queue is empty, it
// waits up to timeout before giving up. The dequeued buffer is
// revalidated (liveness for external buffers); an invalid buffer is
// pushed back to the queue's tail and the call reports a miss (nil, nil)
// rather than retrying, matching BufferPool::acquireFree.
func (p *Pool) AcquireFree(mode Blocking, timeout time.Duration) (*buffer.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.waitForQueue(p.freeCond, &p.freeQueue, mode, timeout) {
		return nil, nil
	}

	buf := p.freeQueue[0]
	p.freeQueue = p.freeQueue[1:]

	if err := p.validateBufferLocked(buf); err != nil {
		p.freeQueue = append(p.freeQueue, buf)
		return nil, nil
	}

	buf.PoolSetState(buffer.LockedByProducer)
	buf.PoolIncRef()
	return buf, nil
}

// SubmitFilled hands a producer's filled buffer to the filled queue.
// Fails with KindProtocolViolation if buf does not belong to this pool.
func (p *Pool) SubmitFilled(buf *buffer.Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.verifyOwnershipLocked(buf); err != nil {
		return err
	}

	buf.PoolSetState(buffer.ReadyForConsume)
	p.filledQueue = append(p.filledQueue, buf)
	p.filledCond.Signal()
	return nil
}

// AcquireFilled takes one buffer from the filled queue for a consumer to
// read. Semantics mirror AcquireFree.
func (p *Pool) AcquireFilled(mode Blocking, timeout time.Duration) (*buffer.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.waitForQueue(p.filledCond, &p.filledQueue, mode, timeout) {
		return nil, nil
	}

	buf := p.filledQueue[0]
	p.filledQueue = p.filledQueue[1:]

	if err := p.validateBufferLocked(buf); err != nil {
		p.filledQueue = append(p.filledQueue, buf)
		return nil, nil
	}

	buf.PoolSetState(buffer.LockedByConsumer)
	return buf, nil
}

// ReleaseFilled returns a consumer's buffer to circulation. A buffer
// injected via InjectFilledBuffer is transient: releasing it ejects it
// instead of recycling it to the free queue, matching
// BufferPool::releaseFilled's transient-first check.
func (p *Pool) ReleaseFilled(buf *buffer.Buffer) error {
	if p.isTransient(buf) {
		p.EjectBuffer(buf)
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.verifyOwnershipLocked(buf); err != nil {
		return err
	}

	buf.PoolDecRef()
	buf.PoolSetState(buffer.Idle)
	p.freeQueue = append(p.freeQueue, buf)
	p.freeCond.Signal()
	return nil
}

// CancelAcquire returns a producer-acquired buffer to the free queue
// without having submitted it, for read failures that must not poison
// the filled queue. Kept distinct from ReleaseFilled because the buffer
// never reached ReadyForConsume.
func (p *Pool) CancelAcquire(buf *buffer.Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.verifyOwnershipLocked(buf); err != nil {
		return err
	}

	buf.PoolDecRef()
	buf.PoolSetState(buffer.Idle)
	p.freeQueue = append(p.freeQueue, buf)
	p.freeCond.Signal()
	return nil
}

// waitForQueue blocks the caller (mu already held) until *queue is
// non-empty or the deadline set by mode/timeout elapses. Returns false
// on a non-blocking miss or a timeout.
func (p *Pool) waitForQueue(cond *sync.Cond, queue *[]*buffer.Buffer, mode Blocking, timeout time.Duration) bool {
	ready := func() bool { return len(*queue) > 0 }
	if mode == NonBlocking {
		return ready()
	}
	return waitWithTimeout(cond, timeout, ready)
}
