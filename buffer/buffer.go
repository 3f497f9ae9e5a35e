package buffer

import "sync/atomic"

// Ownership tags who is responsible for freeing a Buffer's memory.
type Ownership int

const (
	// Owned means the pool allocated the memory and must free it.
	Owned Ownership = iota
	// External means the pool only schedules the buffer; a destroyed
	// external buffer must not be handed out.
	External
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "Owned"
	case External:
		return "External"
	default:
		return "Unknown"
	}
}

// State is a Buffer's position in the producer/consumer state machine.
// Transitions are driven solely by pool operations; an illegal
// transition observed anywhere is a bug, not a recoverable error.
type State int

const (
	// Idle means the buffer sits in the free queue.
	Idle State = iota
	// LockedByProducer means the buffer was handed to a producer and not
	// yet submitted.
	LockedByProducer
	// ReadyForConsume means the buffer sits in the filled queue.
	ReadyForConsume
	// LockedByConsumer means the buffer was handed to a consumer and not
	// yet released.
	LockedByConsumer
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case LockedByProducer:
		return "LockedByProducer"
	case ReadyForConsume:
		return "ReadyForConsume"
	case LockedByConsumer:
		return "LockedByConsumer"
	default:
		return "Unknown"
	}
}

// Buffer is the smallest unit of exchange a BufferPool schedules: a
// stable identity plus a record of provenance. A Buffer does not own its
// memory — the pool, allocator, or handle behind it does.
//
// Grounded on spec.md §3 and §4.3; the C++ original's dedicated "rich"
// Buffer header (id/ownership/state/refcount) was not present in the
// retrieval pack, only a simpler data/size wrapper (Buffer.hpp), so this
// type follows the specification directly.
type Buffer struct {
	id        uint32
	virt      []byte
	physAddr  uint64
	ownership Ownership

	state    atomic.Int32
	refcount atomic.Int32

	dmaBufFd atomic.Int32 // -1 until exported
}

// New constructs a Buffer with the given identity and memory. State
// starts Idle, refcount 0, no exported dma-buf fd.
func New(id uint32, virt []byte, physAddr uint64, ownership Ownership) *Buffer {
	b := &Buffer{
		id:        id,
		virt:      virt,
		physAddr:  physAddr,
		ownership: ownership,
	}
	b.dmaBufFd.Store(-1)
	return b
}

// ID returns the buffer's pool-unique, stable identity.
func (b *Buffer) ID() uint32 { return b.id }

// VirtualAddress returns the buffer's backing memory. Always valid while
// the buffer is live.
func (b *Buffer) VirtualAddress() []byte { return b.virt }

// PhysicalAddress returns the buffer's physical address, or 0 if unknown
// or unavailable on this platform/allocator.
func (b *Buffer) PhysicalAddress() uint64 { return b.physAddr }

// Size returns the buffer's size in bytes.
func (b *Buffer) Size() int { return len(b.virt) }

// Ownership returns whether the pool or an external owner is responsible
// for this buffer's memory.
func (b *Buffer) Ownership() Ownership { return b.ownership }

// State returns the buffer's current position in the state machine.
func (b *Buffer) State() State { return State(b.state.Load()) }

// RefCount returns the buffer's current reference count. Incremented on
// producer acquire, decremented on consumer release.
func (b *Buffer) RefCount() int32 { return b.refcount.Load() }

// DmaBufFd returns the exported DMA-BUF file descriptor, or -1 if the
// buffer has not been exported.
func (b *Buffer) DmaBufFd() int32 { return b.dmaBufFd.Load() }

// IsValid reports the buffer's basic validity predicate: non-nil backing
// memory and a positive size. The pool layers additional checks
// (ownership membership, liveness for externals) in ValidateBuffer.
func (b *Buffer) IsValid() bool {
	return b.virt != nil && len(b.virt) > 0
}

// PoolSetState transitions the buffer's state. Only bufferpool, the
// owner of the state machine, may call this; it is exported so the pool
// package can mutate the buffers it schedules without every field being
// public.
func (b *Buffer) PoolSetState(s State) { b.state.Store(int32(s)) }

// PoolIncRef increments the reference count on producer acquire.
// Pool-only.
func (b *Buffer) PoolIncRef() int32 { return b.refcount.Add(1) }

// PoolDecRef decrements the reference count on consumer release.
// Pool-only.
func (b *Buffer) PoolDecRef() int32 { return b.refcount.Add(-1) }

// PoolSetDmaBufFd caches an exported DMA-BUF descriptor. Pool-only.
func (b *Buffer) PoolSetDmaBufFd(fd int32) { b.dmaBufFd.Store(fd) }
