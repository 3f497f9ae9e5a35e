package bufferpool

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/vidframe/allocator"
	"github.com/e7canasta/vidframe/buffer"
	"github.com/e7canasta/vidframe/registry"
)

// ExternalBufferInfo describes one caller-owned region for the
// external-simple construction mode.
type ExternalBufferInfo struct {
	VirtAddr []byte
	PhysAddr uint64 // 0 means "unknown, resolve via allocator"
}

// Pool is the buffer scheduler: it owns (or schedules) a fixed or
// dynamically growing set of buffer.Buffer, and exposes free/filled FIFO
// queues with blocking-with-timeout acquire.
//
// Locking discipline (spec.md §4.4): mu guards idMap and both queues.
// transientMu guards only the dynamic-injection bookkeeping and is
// always acquired before mu when both are needed, to avoid deadlock.
type Pool struct {
	name       string
	category   string
	registryID uint64

	bufferSize  atomic.Int64 // 0 until set (dynamic-injection, pre-use)
	maxCapacity int          // 0 = unlimited

	allocator allocator.Allocator

	mu          sync.Mutex
	freeCond    *sync.Cond
	filledCond  *sync.Cond
	freeQueue   []*buffer.Buffer
	filledQueue []*buffer.Buffer
	idMap       map[uint32]*buffer.Buffer
	buffers     []*buffer.Buffer // stable population, owned + external-simple + tracked-external

	nextBufferID atomic.Uint32

	handles  []*buffer.Handle           // owned by pool, released on Close (tracked-external mode)
	trackers map[uint32]*buffer.Tracker // buffer id -> liveness tracker (tracked-external mode)

	transientMu      sync.Mutex
	transientBuffers map[*buffer.Buffer]struct{}
	transientHandles map[*buffer.Buffer]*buffer.Handle
}

var _ registry.Pool = (*Pool)(nil)

// NewOwned allocates count buffers of size bytes through Normal or
// ContiguousDMA memory (construction mode 1). If DMA allocation fails
// mid-way, remaining buffers downgrade to Normal memory with a warning,
// matching BufferPool.cpp's per-iteration fallback.
func NewOwned(count int, size int, useCMA bool, name, category string) (*Pool, error) {
	if count <= 0 || size <= 0 {
		return nil, newError(KindConfiguration, "count and size must be positive (count=%d, size=%d)", count, size)
	}

	p := newBasePool(name, category, 0)

	var alloc allocator.Allocator
	if useCMA {
		alloc = allocator.NewContiguousDMA()
	} else {
		alloc = allocator.Normal{}
	}
	p.allocator = alloc

	for i := 0; i < count; i++ {
		virt, phys, err := alloc.Allocate(size)
		if err != nil && useCMA {
			slog.Warn("bufferpool: DMA allocation failed, downgrading to normal memory", "pool", name, "index", i, "err", err)
			alloc = allocator.Normal{}
			p.allocator = alloc
			virt, phys, err = alloc.Allocate(size)
		}
		if err != nil {
			p.releaseAllocatedLocked()
			return nil, newError(KindAllocationFailure, "buffer #%d: %v", i, err)
		}

		id := p.nextBufferID.Add(1) - 1
		buf := buffer.New(id, virt, phys, buffer.Owned)
		p.buffers = append(p.buffers, buf)
		p.idMap[id] = buf
		p.freeQueue = append(p.freeQueue, buf)
	}

	p.bufferSize.Store(int64(size))
	p.register()
	return p, nil
}

// NewExternalSimple wraps caller-owned regions with no liveness tracking
// (construction mode 2). Physical addresses left at 0 are resolved via
// Normal's pagemap helper on a best-effort basis.
func NewExternalSimple(infos []ExternalBufferInfo, name, category string) (*Pool, error) {
	if len(infos) == 0 {
		return nil, ErrEmptyExternalBuffers
	}

	p := newBasePool(name, category, 0)
	p.allocator = allocator.External{}

	size := len(infos[0].VirtAddr)
	p.bufferSize.Store(int64(size))

	for _, info := range infos {
		if len(info.VirtAddr) != size {
			slog.Warn("bufferpool: external buffer size mismatch", "pool", name, "want", size, "got", len(info.VirtAddr))
		}

		phys := info.PhysAddr
		if phys == 0 {
			phys = allocator.ResolvePhysicalAddress(info.VirtAddr)
		}

		id := p.nextBufferID.Add(1) - 1
		buf := buffer.New(id, info.VirtAddr, phys, buffer.External)
		p.buffers = append(p.buffers, buf)
		p.idMap[id] = buf
		p.freeQueue = append(p.freeQueue, buf)
	}

	p.register()
	return p, nil
}

// NewExternalTracked wraps caller-owned regions behind handles whose
// liveness the pool tracks via a weak Tracker (construction mode 3). The
// pool takes ownership of the handles and releases them on Close.
func NewExternalTracked(handles []*buffer.Handle, name, category string) (*Pool, error) {
	if len(handles) == 0 {
		return nil, ErrEmptyHandles
	}

	p := newBasePool(name, category, 0)
	p.allocator = allocator.External{}
	p.bufferSize.Store(int64(handles[0].Size()))
	p.handles = handles
	p.trackers = make(map[uint32]*buffer.Tracker, len(handles))

	for _, h := range handles {
		id := p.nextBufferID.Add(1) - 1
		buf := buffer.New(id, h.VirtualAddress(), h.PhysicalAddress(), buffer.External)
		p.buffers = append(p.buffers, buf)
		p.idMap[id] = buf
		p.trackers[id] = h.Tracker()
		p.freeQueue = append(p.freeQueue, buf)
	}

	p.register()
	return p, nil
}

// NewDynamic creates an empty pool that is filled at runtime via
// InjectFilledBuffer (construction mode 4). maxCapacity of 0 means
// unlimited.
func NewDynamic(name, category string, maxCapacity int) *Pool {
	p := newBasePool(name, category, maxCapacity)
	p.allocator = allocator.External{}
	p.register()
	return p
}

func newBasePool(name, category string, maxCapacity int) *Pool {
	p := &Pool{
		name:             name,
		category:         category,
		maxCapacity:      maxCapacity,
		idMap:            make(map[uint32]*buffer.Buffer),
		transientBuffers: make(map[*buffer.Buffer]struct{}),
		transientHandles: make(map[*buffer.Buffer]*buffer.Handle),
	}
	p.freeCond = sync.NewCond(&p.mu)
	p.filledCond = sync.NewCond(&p.mu)
	return p
}

func (p *Pool) register() {
	p.registryID = registry.Global().RegisterPool(p, p.name, p.category)
}

// releaseAllocatedLocked frees every buffer allocated so far during a
// failed NewOwned construction, matching the C++ original's "no partial
// pool is exposed" contract.
func (p *Pool) releaseAllocatedLocked() {
	for _, b := range p.buffers {
		if b.Ownership() == buffer.Owned {
			p.allocator.Deallocate(b.VirtualAddress())
		}
	}
}

// Close tears down the pool in reverse of construction: unregisters from
// the registry, frees owned memory through the allocator, and releases
// any tracked-external handles (which runs their deleters).
func (p *Pool) Close() {
	registry.Global().UnregisterPool(p.registryID)

	if p.allocator != nil {
		for _, b := range p.buffers {
			if b.Ownership() == buffer.Owned {
				p.allocator.Deallocate(b.VirtualAddress())
			}
		}
	}
	for _, h := range p.handles {
		h.Close()
	}
}

// Name implements registry.Pool.
func (p *Pool) Name() string { return p.name }

// Category implements registry.Pool.
func (p *Pool) Category() string { return p.category }

// RegistryID returns the pool's unique id assigned at registration.
func (p *Pool) RegistryID() uint64 { return p.registryID }

// GetFreeCount returns the number of buffers currently in the free
// queue.
func (p *Pool) GetFreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.freeQueue)
}

// GetFilledCount returns the number of buffers currently in the filled
// queue.
func (p *Pool) GetFilledCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.filledQueue)
}

// GetTotalCount returns the pool's current buffer population. For
// dynamic-injection pools this changes as buffers are injected/ejected.
func (p *Pool) GetTotalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idMap)
}

// GetBufferSize returns the configured per-buffer size, or 0 if not yet
// set (dynamic-injection, pre-first-use).
func (p *Pool) GetBufferSize() int { return int(p.bufferSize.Load()) }

// SetBufferSize locks in the pool's frame size. Permitted only while the
// configured size is zero (dynamic-injection, pre-use).
func (p *Pool) SetBufferSize(size int) error {
	if size <= 0 {
		return newError(KindConfiguration, "buffer size must be positive")
	}
	if !p.bufferSize.CompareAndSwap(0, int64(size)) {
		return newError(KindConfiguration, "buffer size already set to %d", p.bufferSize.Load())
	}
	return nil
}

// GetBufferByID returns the buffer registered under id, or nil.
func (p *Pool) GetBufferByID(id uint32) *buffer.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idMap[id]
}

// Stats implements registry.Pool.
func (p *Pool) Stats() registry.Stats {
	p.mu.Lock()
	free, filled, total := len(p.freeQueue), len(p.filledQueue), len(p.idMap)
	p.mu.Unlock()

	return registry.Stats{
		Free:        free,
		Filled:      filled,
		Total:       total,
		MemoryBytes: uint64(total) * uint64(p.GetBufferSize()),
	}
}
